package domain

// ObjectProvider creates and destroys the physical representation of
// entities on each stage surface. A false result from CreateObject or
// UpdateObject means the placement collided or was invalid.
type ObjectProvider interface {
	CreateObject(stage StageNumber, pos Position, dir Direction, value Value) (Handle, bool)
	// UpdateObject changes an existing object in place. It may return a
	// different handle when the host had to rebuild the object.
	UpdateObject(stage StageNumber, h Handle, value Value, dir Direction) (Handle, bool)
	// CreatePreview places a non-functional placeholder tagged with name.
	CreatePreview(stage StageNumber, pos Position, dir Direction, name string) Handle
	// SetProtected marks an object non-editable, non-minable and non-rotatable.
	SetProtected(stage StageNumber, h Handle, protected bool)
	Destroy(stage StageNumber, h Handle)
}

// LinkSet is the desired set of physical links between two live objects.
type LinkSet struct {
	Cable    bool
	Circuits []CircuitWire
}

// Empty reports whether the link set requests no links at all.
func (l LinkSet) Empty() bool {
	return !l.Cable && len(l.Circuits) == 0
}

// WireProvider applies logical connections onto physical objects.
type WireProvider interface {
	// SyncLinks makes the links between a and b exactly match want. It
	// reports whether any object exceeded its physical link maximum.
	SyncLinks(stage StageNumber, a, b Handle, want LinkSet) (exceeded bool)
	// PruneLinks removes every link from h to objects not listed in keep.
	PruneLinks(stage StageNumber, h Handle, keep []Handle)
}

// ObservedLink is a physical link read back from the world.
type ObservedLink struct {
	Other   Handle       `json:"other" yaml:"other"`
	Cable   bool         `json:"cable,omitempty" yaml:"cable,omitempty"`
	Circuit *CircuitWire `json:"circuit,omitempty" yaml:"circuit,omitempty"`
}

// Notifier receives outcomes the UI layer turns into messages.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }
