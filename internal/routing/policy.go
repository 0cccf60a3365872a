package routing

import "github.com/danmuck/gardenctl/internal/model"

// targetPolicy says how the target garden of an operation kind is found.
type targetPolicy int

const (
	// always the local garden
	targetLocal targetPolicy = iota + 1
	// system id in args[0]
	targetSystemID
	// system_id + instance_name kwargs, else instance id in args[0]
	targetInstance
	// system identity taken from the request model
	targetRequestSystem
	// request id in args[0], loaded from the store, executed locally
	targetRequestLookup
	// queue name "namespace.name.version.instance" in args[0]
	targetQueueName
	// no way to infer a target; the caller must supply one
	targetUnroutable
)

var targetPolicies = map[model.OperationType]targetPolicy{
	model.RequestCreate:   targetRequestSystem,
	model.RequestStart:    targetRequestLookup,
	model.RequestComplete: targetRequestLookup,
	model.RequestRead:     targetLocal,
	model.RequestReadAll:  targetLocal,

	model.CommandRead:    targetLocal,
	model.CommandReadAll: targetLocal,

	model.InstanceRead:       targetLocal,
	model.InstanceDelete:     targetInstance,
	model.InstanceUpdate:     targetInstance,
	model.InstanceHeartbeat:  targetInstance,
	model.InstanceInitialize: targetInstance,
	model.InstanceStart:      targetInstance,
	model.InstanceStop:       targetInstance,
	model.InstanceLogs:       targetInstance,

	model.JobCreate:  targetLocal,
	model.JobRead:    targetLocal,
	model.JobReadAll: targetLocal,
	model.JobPause:   targetLocal,
	model.JobResume:  targetLocal,
	model.JobDelete:  targetLocal,

	model.SystemCreate:  targetLocal,
	model.SystemRead:    targetLocal,
	model.SystemReadAll: targetLocal,
	model.SystemUpdate:  targetSystemID,
	model.SystemReload:  targetSystemID,
	model.SystemRescan:  targetLocal,
	model.SystemDelete:  targetSystemID,

	model.GardenCreate:       targetLocal,
	model.GardenRead:         targetLocal,
	model.GardenReadAll:      targetLocal,
	model.GardenUpdateStatus: targetLocal,
	model.GardenUpdateConfig: targetLocal,
	model.GardenDelete:       targetLocal,
	model.GardenSync:         targetLocal,

	model.PluginLogRead:       targetLocal,
	model.PluginLogReadLegacy: targetLocal,
	model.PluginLogReload:     targetLocal,

	model.QueueRead:         targetLocal,
	model.QueueDelete:       targetQueueName,
	model.QueueDeleteAll:    targetUnroutable,
	model.QueueReadInstance: targetLocal,

	model.NamespaceReadAll: targetLocal,
}

// forwardable lists the kinds a garden will hand to a descendant.
var forwardable = map[model.OperationType]struct{}{
	model.InstanceStart: {},
	model.InstanceStop:  {},
	model.RequestCreate: {},
	model.SystemDelete:  {},
	model.GardenSync:    {},
}

// Forwardable reports whether operations of kind t may be sent to another garden.
func Forwardable(t model.OperationType) bool {
	_, ok := forwardable[t]
	return ok
}
