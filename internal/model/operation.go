package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OperationType is the closed set of operation kinds a garden understands.
type OperationType string

const (
	RequestCreate   OperationType = "REQUEST_CREATE"
	RequestStart    OperationType = "REQUEST_START"
	RequestComplete OperationType = "REQUEST_COMPLETE"
	RequestRead     OperationType = "REQUEST_READ"
	RequestReadAll  OperationType = "REQUEST_READ_ALL"

	CommandRead    OperationType = "COMMAND_READ"
	CommandReadAll OperationType = "COMMAND_READ_ALL"

	InstanceRead       OperationType = "INSTANCE_READ"
	InstanceDelete     OperationType = "INSTANCE_DELETE"
	InstanceUpdate     OperationType = "INSTANCE_UPDATE"
	InstanceHeartbeat  OperationType = "INSTANCE_HEARTBEAT"
	InstanceInitialize OperationType = "INSTANCE_INITIALIZE"
	InstanceStart      OperationType = "INSTANCE_START"
	InstanceStop       OperationType = "INSTANCE_STOP"
	InstanceLogs       OperationType = "INSTANCE_LOGS"

	JobCreate  OperationType = "JOB_CREATE"
	JobRead    OperationType = "JOB_READ"
	JobReadAll OperationType = "JOB_READ_ALL"
	JobPause   OperationType = "JOB_PAUSE"
	JobResume  OperationType = "JOB_RESUME"
	JobDelete  OperationType = "JOB_DELETE"

	SystemCreate  OperationType = "SYSTEM_CREATE"
	SystemRead    OperationType = "SYSTEM_READ"
	SystemReadAll OperationType = "SYSTEM_READ_ALL"
	SystemUpdate  OperationType = "SYSTEM_UPDATE"
	SystemReload  OperationType = "SYSTEM_RELOAD"
	SystemRescan  OperationType = "SYSTEM_RESCAN"
	SystemDelete  OperationType = "SYSTEM_DELETE"

	GardenCreate       OperationType = "GARDEN_CREATE"
	GardenRead         OperationType = "GARDEN_READ"
	GardenReadAll      OperationType = "GARDEN_READ_ALL"
	GardenUpdateStatus OperationType = "GARDEN_UPDATE_STATUS"
	GardenUpdateConfig OperationType = "GARDEN_UPDATE_CONFIG"
	GardenDelete       OperationType = "GARDEN_DELETE"
	GardenSync         OperationType = "GARDEN_SYNC"

	PluginLogRead       OperationType = "PLUGIN_LOG_READ"
	PluginLogReadLegacy OperationType = "PLUGIN_LOG_READ_LEGACY"
	PluginLogReload     OperationType = "PLUGIN_LOG_RELOAD"

	QueueRead         OperationType = "QUEUE_READ"
	QueueDelete       OperationType = "QUEUE_DELETE"
	QueueDeleteAll    OperationType = "QUEUE_DELETE_ALL"
	QueueReadInstance OperationType = "QUEUE_READ_INSTANCE"

	NamespaceReadAll OperationType = "NAMESPACE_READ_ALL"
)

var operationTypes = []OperationType{
	RequestCreate, RequestStart, RequestComplete, RequestRead, RequestReadAll,
	CommandRead, CommandReadAll,
	InstanceRead, InstanceDelete, InstanceUpdate, InstanceHeartbeat, InstanceInitialize,
	InstanceStart, InstanceStop, InstanceLogs,
	JobCreate, JobRead, JobReadAll, JobPause, JobResume, JobDelete,
	SystemCreate, SystemRead, SystemReadAll, SystemUpdate, SystemReload, SystemRescan, SystemDelete,
	GardenCreate, GardenRead, GardenReadAll, GardenUpdateStatus, GardenUpdateConfig, GardenDelete, GardenSync,
	PluginLogRead, PluginLogReadLegacy, PluginLogReload,
	QueueRead, QueueDelete, QueueDeleteAll, QueueReadInstance,
	NamespaceReadAll,
}

var knownOperationTypes = func() map[OperationType]struct{} {
	out := make(map[OperationType]struct{}, len(operationTypes))
	for _, t := range operationTypes {
		out[t] = struct{}{}
	}
	return out
}()

// OperationTypes returns every recognized operation kind.
func OperationTypes() []OperationType {
	out := make([]OperationType, len(operationTypes))
	copy(out, operationTypes)
	return out
}

// Valid reports whether t is one of the recognized kinds.
func (t OperationType) Valid() bool {
	_, ok := knownOperationTypes[t]
	return ok
}

func (t OperationType) String() string {
	return string(t)
}

// Operation is a typed request for an action, addressed to a garden.
type Operation struct {
	OperationType    OperationType
	SourceGardenName string
	TargetGardenName string
	Model            any
	Args             []any
	Kwargs           map[string]any
}

// Arg returns positional argument i when present.
func (o *Operation) Arg(i int) (any, bool) {
	if o == nil || i < 0 || i >= len(o.Args) {
		return nil, false
	}
	return o.Args[i], true
}

// StringArg returns positional argument i rendered as a trimmed string.
func (o *Operation) StringArg(i int) (string, bool) {
	raw, ok := o.Arg(i)
	if !ok || raw == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(raw))
	return s, s != ""
}

// Kwarg returns the named value key when present.
func (o *Operation) Kwarg(key string) (any, bool) {
	if o == nil || o.Kwargs == nil {
		return nil, false
	}
	v, ok := o.Kwargs[key]
	return v, ok
}

func (o *Operation) String() string {
	if o == nil {
		return "<nil operation>"
	}
	return fmt.Sprintf(
		"Operation(type=%s, source=%s, target=%s)",
		o.OperationType,
		o.SourceGardenName,
		o.TargetGardenName,
	)
}

const (
	modelTypeRequest = "Request"
	modelTypeSystem  = "System"
	modelTypeGarden  = "Garden"
)

type operationWire struct {
	OperationType    OperationType   `json:"operation_type"`
	SourceGardenName string          `json:"source_garden_name,omitempty"`
	TargetGardenName string          `json:"target_garden_name,omitempty"`
	ModelType        string          `json:"model_type,omitempty"`
	Model            json.RawMessage `json:"model,omitempty"`
	Args             []any           `json:"args"`
	Kwargs           map[string]any  `json:"kwargs"`
}

// MarshalJSON encodes the operation with a model_type discriminator so the
// payload can be decoded back into its concrete type on the receiving garden.
func (o Operation) MarshalJSON() ([]byte, error) {
	wire := operationWire{
		OperationType:    o.OperationType,
		SourceGardenName: o.SourceGardenName,
		TargetGardenName: o.TargetGardenName,
		Args:             o.Args,
		Kwargs:           o.Kwargs,
	}
	if wire.Args == nil {
		wire.Args = []any{}
	}
	if wire.Kwargs == nil {
		wire.Kwargs = map[string]any{}
	}
	if o.Model != nil {
		modelType, err := modelTypeOf(o.Model)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(o.Model)
		if err != nil {
			return nil, err
		}
		wire.ModelType = modelType
		wire.Model = raw
	}
	return json.Marshal(wire)
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var wire operationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := Operation{
		OperationType:    wire.OperationType,
		SourceGardenName: wire.SourceGardenName,
		TargetGardenName: wire.TargetGardenName,
		Args:             wire.Args,
		Kwargs:           wire.Kwargs,
	}
	if len(wire.Model) > 0 && string(wire.Model) != "null" {
		m, err := decodeModel(wire.ModelType, wire.Model)
		if err != nil {
			return err
		}
		out.Model = m
	}
	if out.Args == nil {
		out.Args = []any{}
	}
	if out.Kwargs == nil {
		out.Kwargs = map[string]any{}
	}
	*o = out
	return nil
}

func modelTypeOf(m any) (string, error) {
	switch m.(type) {
	case *Request, Request:
		return modelTypeRequest, nil
	case *System, System:
		return modelTypeSystem, nil
	case *Garden, Garden:
		return modelTypeGarden, nil
	default:
		return "", fmt.Errorf("model: unsupported operation model %T", m)
	}
}

func decodeModel(modelType string, raw json.RawMessage) (any, error) {
	switch modelType {
	case modelTypeRequest:
		var out Request
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case modelTypeSystem:
		var out System
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return &out, nil
	case modelTypeGarden:
		var out Garden
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("model: unknown model_type %q", modelType)
	}
}
