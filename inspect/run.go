// Package inspect implements program commands: building media rule index
// from stylesheets and resolving property values for selectors.
package inspect

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"mqwatch/archive"
	"mqwatch/css"
	"mqwatch/media"
	"mqwatch/state"
	"mqwatch/utils/debug"
	"mqwatch/watcher"
)

// Index is "index" command action: it scans all sources into a single
// watcher and prints resulting index and match state.
func Index(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("index")

	sources := cmd.Args().Slice()
	if len(sources) == 0 {
		return errors.New("no input source has been specified")
	}

	vp, err := viewport(env, cmd)
	if err != nil {
		return err
	}

	log.Info("Indexing starting", zap.Strings("sources", sources))
	defer func(start time.Time) {
		log.Info("Indexing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return index(ctx, env, sources, vp, os.Stdout)
}

// Resolve is "resolve" command action: it scans all sources and prints
// values of requested properties for selectors (highest priority first),
// optionally following viewport changes.
func Resolve(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("resolve")

	req := request{
		sources:    cmd.Args().Slice(),
		selectors:  cmd.StringSlice("selector"),
		properties: cmd.StringSlice("property"),
		media:      cmd.String("media"),
	}
	if len(req.sources) == 0 {
		return errors.New("no input source has been specified")
	}
	if len(req.selectors) == 0 || len(req.properties) == 0 {
		return errors.New("at least one selector and one property must be specified")
	}

	var err error
	if req.viewport, err = viewport(env, cmd); err != nil {
		return err
	}
	for _, s := range cmd.StringSlice("resize") {
		vp, err := resize(req.viewport, s)
		if err != nil {
			return fmt.Errorf("unable to parse viewport size: %w", err)
		}
		req.resizes = append(req.resizes, vp)
	}

	log.Info("Resolution starting", zap.Strings("sources", req.sources), zap.Strings("selectors", req.selectors), zap.Strings("properties", req.properties))
	defer func(start time.Time) {
		log.Info("Resolution completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return resolve(ctx, env, req, os.Stdout)
}

// viewport combines configured viewport with command line overrides.
func viewport(env *state.LocalEnv, cmd *cli.Command) (media.Viewport, error) {
	vp := env.Cfg.Watcher.Viewport.Viewport()
	if cmd.IsSet("type") {
		vp.Type = cmd.String("type")
	}
	if cmd.IsSet("width") {
		vp.Width = cmd.Float("width")
	}
	if cmd.IsSet("height") {
		vp.Height = cmd.Float("height")
	}
	if cmd.IsSet("resolution") {
		vp.Resolution = cmd.Float("resolution")
	}
	if cmd.IsSet("color-scheme") {
		vp.ColorScheme = cmd.String("color-scheme")
	}
	if vp.Width < 0 || vp.Height < 0 || vp.Resolution < 0 {
		return vp, fmt.Errorf("invalid viewport %+v", vp)
	}
	return vp, nil
}

// resize applies "W" or "WxH" to viewport.
func resize(vp media.Viewport, size string) (media.Viewport, error) {
	ws, hs, found := strings.Cut(strings.ToLower(strings.TrimSpace(size)), "x")
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil || w < 0 {
		return vp, fmt.Errorf("bad width in '%s'", size)
	}
	vp.Width = w
	if found {
		h, err := strconv.ParseFloat(hs, 64)
		if err != nil || h < 0 {
			return vp, fmt.Errorf("bad height in '%s'", size)
		}
		vp.Height = h
	}
	return vp, nil
}

// scan is match state reported by watcher for a single stylesheet.
type scan struct {
	href    string
	matched []string
}

// load reads and scans all sources (with their imports) into watcher.
// Returns match states of every scanned stylesheet in scan order.
func load(ctx context.Context, env *state.LocalEnv, w *watcher.Watcher, sources []string, onChange media.Listener) ([]scan, error) {
	parser := css.NewParser(env.Log)
	seen := make(map[string]bool)

	var scans []scan

	scanSheets := func(sheets []*css.Sheet) error {
		for _, sheet := range sheets {
			if seen[sheet.Href] {
				env.Log.Debug("Stylesheet already scanned", zap.String("sheet", sheet.Href))
				continue
			}
			seen[sheet.Href] = true
			for _, warn := range sheet.Warnings {
				env.Log.Warn("Stylesheet problem", zap.String("sheet", sheet.Href), zap.String("warning", warn))
			}
			matched, err := w.AddMediaQueriesListener(sheet, onChange)
			if err != nil {
				return fmt.Errorf("unable to scan stylesheet '%s': %w", sheet.Href, err)
			}
			scans = append(scans, scan{href: sheet.Href, matched: matched})
		}
		return nil
	}

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		arc, inner, err := archive.Locate(src)
		if err != nil {
			return nil, err
		}
		if arc != "" {
			if err := loadArchive(ctx, env, parser, arc, inner, scanSheets); err != nil {
				return nil, fmt.Errorf("unable to process archive: %w", err)
			}
			storeSource(env, i, 0, arc)
			continue
		}

		sheets, err := parser.Load(src)
		if err != nil {
			return nil, err
		}
		for j, sheet := range sheets {
			if !seen[sheet.Href] {
				storeSource(env, i, j, sheet.Href)
			}
		}
		if err := scanSheets(sheets); err != nil {
			return nil, err
		}
	}
	return scans, nil
}

// loadArchive scans all stylesheets under inner path of zip archive.
func loadArchive(ctx context.Context, env *state.LocalEnv, parser *css.Parser, arc, inner string, scanSheets func([]*css.Sheet) error) (err error) {
	b, err := archive.Open(arc)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, b.Close())
	}()

	count := 0
	err = b.Walk(inner, func(name string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
		sheets, err := parser.LoadFS(&b.Reader, name+"/", f.Name)
		if err != nil {
			return err
		}
		return scanSheets(sheets)
	})
	if err == nil && count == 0 {
		env.Log.Warn("No stylesheets found in archive", zap.String("archive", arc), zap.String("path", inner))
	}
	return err
}

func storeSource(env *state.LocalEnv, i, j int, src string) {
	if err := env.Rpt.StoreCopy(fmt.Sprintf("sources/%02d-%02d-%s", i, j, slug.Make(filepath.Base(src))), src); err != nil {
		env.Log.Warn("Unable to store source in report", zap.String("source", src), zap.Error(err))
	}
}

func index(ctx context.Context, env *state.LocalEnv, sources []string, vp media.Viewport, out io.Writer) error {
	oracle := env.NewEnvironment(vp)
	w := env.NewWatcher(oracle)
	defer w.Close() //nolint:errcheck

	scans, err := load(ctx, env, w, sources, nil)
	if err != nil {
		return err
	}

	dump := w.String()
	env.Rpt.StoreData("index/"+slug.Make(strings.Join(sources, " "))+".txt", []byte(dump))

	tw := debug.NewTreeWriter()
	for _, sc := range scans {
		tw.List(0, fmt.Sprintf("Matched[%q]", path.Base(filepath.ToSlash(sc.href))), sc.matched)
	}

	_, err = io.WriteString(out, dump+tw.String())
	return err
}

type request struct {
	sources    []string
	selectors  []string
	properties []string
	media      string
	viewport   media.Viewport
	resizes    []media.Viewport
}

type viewportOut struct {
	Type        string  `yaml:"type"`
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
	Resolution  float64 `yaml:"resolution"`
	ColorScheme string  `yaml:"color_scheme"`
}

type changeOut struct {
	Media   string `yaml:"media"`
	Matches bool   `yaml:"matches"`
}

type resolution struct {
	Change     *changeOut        `yaml:"change,omitempty"`
	Viewport   viewportOut       `yaml:"viewport"`
	Matched    []string          `yaml:"matched"`
	Properties map[string]string `yaml:"properties"`
	Unresolved []string          `yaml:"unresolved,omitempty"`
}

func resolve(ctx context.Context, env *state.LocalEnv, req request, out io.Writer) (err error) {
	oracle := env.NewEnvironment(req.viewport)
	w := env.NewWatcher(oracle)
	defer func() {
		if e := w.Close(); e != nil && err == nil {
			err = fmt.Errorf("unable to remove listeners: %w", e)
		}
	}()

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	current := func(change *changeOut) resolution {
		vp := oracle.Viewport()
		res := resolution{
			Change:   change,
			Viewport: viewportOut{Type: vp.Type, Width: vp.Width, Height: vp.Height, Resolution: vp.Resolution, ColorScheme: vp.ColorScheme},
		}
		if req.media != "" {
			res.Matched = []string{req.media}
			res.Properties, res.Unresolved = w.Resolve(req.media, req.selectors, req.properties)
			return res
		}
		res.Matched = w.Matched()
		res.Properties = w.ResolveMatched(res.Matched, req.selectors, req.properties)
		for _, p := range req.properties {
			if _, ok := res.Properties[strings.Join(strings.Fields(p), "")]; !ok {
				res.Unresolved = append(res.Unresolved, p)
			}
		}
		return res
	}

	var listenerErr error
	onChange := func(c media.Change) {
		env.Log.Debug("Media query changed", zap.String("media", c.Media), zap.Bool("matches", c.Matches))
		if listenerErr != nil {
			return
		}
		listenerErr = enc.Encode(current(&changeOut{Media: c.Media, Matches: c.Matches}))
	}

	if _, err := load(ctx, env, w, req.sources, onChange); err != nil {
		return err
	}
	if err := enc.Encode(current(nil)); err != nil {
		return fmt.Errorf("unable to write result: %w", err)
	}

	for _, vp := range req.resizes {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := oracle.Update(vp)
		env.Log.Debug("Viewport changed", zap.Float64("width", vp.Width), zap.Float64("height", vp.Height), zap.Int("notifications", n))
		if listenerErr != nil {
			return fmt.Errorf("unable to write result: %w", listenerErr)
		}
	}
	return enc.Close()
}
