// Package diag collects structured diagnostic records produced by components
// which detect malformed input but must not fail because of it.
package diag

import (
	"encoding/json"

	"go.uber.org/zap"
)

const (
	// ComponentID is used for records the collector produces about itself.
	ComponentID = "ErrorLogger"
	// CodeMissingRequiredField marks a rejected record without component id and/or code.
	CodeMissingRequiredField = "missing_required_field"

	missingFieldDescription = "The error field does not contain a componentId and/or an error code"
)

// Record is a single diagnostic entry.
type Record struct {
	ComponentID string         `json:"componentId"`
	Code        string         `json:"code"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data"`
}

// Sink is implemented by anything able to accept diagnostic records.
type Sink interface {
	AddError(componentID, code, description string, data map[string]any)
	AddErrors(componentID string, errs []Record)
}

// Collector keeps diagnostic records in memory in the order they were added.
// NOTE: not to be used concurrently, callers needing isolation should use
// separate instances.
type Collector struct {
	log     *zap.Logger
	records []Record
}

var _ Sink = (*Collector)(nil)

// New creates empty collector. Show reports through log.
func New(log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Collector{log: log.Named("diag")}
	c.Clear()
	return c
}

// AddError stores a new record. When componentID or code is empty the record
// is replaced by one describing the rejection, original is kept as payload.
func (c *Collector) AddError(componentID, code, description string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	rec := Record{
		ComponentID: componentID,
		Code:        code,
		Description: description,
		Data:        cloneData(data),
	}
	if rec.ComponentID == "" || rec.Code == "" {
		c.records = append(c.records, Record{
			ComponentID: ComponentID,
			Code:        CodeMissingRequiredField,
			Description: missingFieldDescription,
			Data:        map[string]any{"originalError": rec},
		})
		return
	}
	c.records = append(c.records, rec)
}

// AddErrors stores multiple records on behalf of the same component. Component
// id of individual entries is ignored.
func (c *Collector) AddErrors(componentID string, errs []Record) {
	for _, e := range errs {
		c.AddError(componentID, e.Code, e.Description, e.Data)
	}
}

// HasErrors reports whether anything was collected.
func (c *Collector) HasErrors() bool {
	return len(c.records) > 0
}

// Clear drops all collected records.
func (c *Collector) Clear() {
	c.records = []Record{}
}

// Records returns a deep copy of collected records in storage order: nested
// maps and records wrapped by substitution are copied as well.
func (c *Collector) Records() []Record {
	out := make([]Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.clone()
	}
	return out
}

func (r Record) clone() Record {
	r.Data = cloneData(r.Data)
	return r
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch v := v.(type) {
		case Record:
			out[k] = v.clone()
		case map[string]any:
			out[k] = cloneData(v)
		default:
			out[k] = v
		}
	}
	return out
}

// Show logs every collected record serialized as JSON, one entry per record.
func (c *Collector) Show() {
	if !c.HasErrors() {
		c.log.Debug("No errors were logged so far")
		return
	}
	for _, r := range c.records {
		data, err := json.Marshal(r)
		if err != nil {
			c.log.Error("Unable to serialize diagnostic record",
				zap.String("component", r.ComponentID), zap.String("code", r.Code), zap.Error(err))
			continue
		}
		c.log.Error(string(data))
	}
}
