package css

import (
	"bytes"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var charsetPrefix = []byte(`@charset "`)

// Load reads stylesheet from path following local @import rules. Imported
// sheets precede the importing one in the result and every file is loaded
// only once. Failure to load an imported file is not fatal - it is logged
// and recorded as a warning of the importing sheet.
func (p *Parser) Load(path string) ([]*Sheet, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve stylesheet path '%s': %w", path, err)
	}
	return p.load(tree{}, abs, make(map[string]bool))
}

// LoadFS is Load for stylesheets in fsys, for example zip archive. Imports
// are resolved inside fsys and may not leave it. Sheet Href is name inside
// fsys prefixed with prefix.
func (p *Parser) LoadFS(fsys fs.FS, prefix, name string) ([]*Sheet, error) {
	name = path.Clean(name)
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("unable to resolve stylesheet path '%s': %w", name, fs.ErrInvalid)
	}
	return p.load(tree{fsys: fsys, prefix: prefix}, name, make(map[string]bool))
}

// tree is where stylesheets and their imports are read from.
type tree struct {
	fsys   fs.FS // nil for local file system
	prefix string
}

func (t tree) read(name string) ([]byte, error) {
	if t.fsys == nil {
		return os.ReadFile(name)
	}
	return fs.ReadFile(t.fsys, name)
}

func (t tree) href(name string) string {
	if t.fsys == nil {
		return name
	}
	return t.prefix + name
}

// resolve returns name of @import target relative to importing sheet.
// Anything with URL scheme is not considered local.
func (t tree) resolve(from, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	if t.fsys == nil {
		target := filepath.FromSlash(u.Path)
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(from), target)
		}
		return filepath.Clean(target), true
	}
	target := strings.TrimPrefix(u.Path, "/")
	if !strings.HasPrefix(u.Path, "/") {
		target = path.Join(path.Dir(from), u.Path)
	}
	target = path.Clean(target)
	return target, fs.ValidPath(target)
}

func (p *Parser) load(t tree, name string, visited map[string]bool) ([]*Sheet, error) {
	visited[name] = true
	href := t.href(name)

	data, err := t.read(name)
	if err != nil {
		return nil, fmt.Errorf("unable to read stylesheet '%s': %w", href, err)
	}
	text, enc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet '%s': %w", href, err)
	}

	sheet := p.Parse(text, href)
	sheet.Charset = enc

	var sheets []*Sheet
	for _, ref := range sheet.Imports() {
		target, ok := t.resolve(name, ref)
		if !ok {
			p.log.Debug("Ignoring non local @import", zap.String("url", ref), zap.String("sheet", href))
			continue
		}
		if visited[target] {
			p.log.Debug("Stylesheet already loaded", zap.String("url", ref), zap.String("sheet", href))
			continue
		}
		imported, err := p.load(t, target, visited)
		if err != nil {
			sheet.Warnings = append(sheet.Warnings, "unable to load @import: "+ref)
			p.log.Warn("Unable to load imported stylesheet, ignoring", zap.String("url", ref), zap.Error(err))
			continue
		}
		sheets = append(sheets, imported...)
	}
	return append(sheets, sheet), nil
}

// Decode converts raw stylesheet bytes to UTF-8. Byte order mark takes
// precedence over @charset rule, absent both UTF-8 is assumed. Known binary
// formats are rejected. Returns canonical name of the source encoding.
func Decode(data []byte) ([]byte, string, error) {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return nil, "", fmt.Errorf("not a stylesheet, looks like %s", kind.MIME.Value)
	}

	var (
		enc  encoding.Encoding = unicode.UTF8
		name                   = "utf-8"
	)
	if label, ok := charsetLabel(data); ok {
		if e, n := charset.Lookup(label); e != nil {
			enc, name = e, n
		}
	}
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		name = "utf-8"
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		name = "utf-16be"
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		name = "utf-16le"
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return nil, "", err
	}
	return out, name, nil
}

// charsetLabel returns encoding label of leading @charset rule if present.
func charsetLabel(data []byte) (string, bool) {
	if !bytes.HasPrefix(data, charsetPrefix) {
		return "", false
	}
	rest := data[len(charsetPrefix):]
	end := bytes.Index(rest, []byte(`";`))
	if end <= 0 {
		return "", false
	}
	return string(rest[:end]), true
}
