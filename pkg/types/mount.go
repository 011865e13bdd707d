package types

// MountState tracks how far through the layered mount sequence a target has
// progressed. Transitions are sequential per target: the machine never runs
// two transitions on one target concurrently.
type MountState int

const (
	MountStateUnmounted MountState = iota
	MountStateRemoteMounting
	MountStateRemoteMounted
	MountStateEncryptedMounting
	MountStateReady
	MountStateUnmounting
	MountStateMountFailed
)

var mountStateNames = map[MountState]string{
	MountStateUnmounted:         "unmounted",
	MountStateRemoteMounting:    "remote-mounting",
	MountStateRemoteMounted:     "remote-mounted",
	MountStateEncryptedMounting: "encrypted-mounting",
	MountStateReady:             "ready",
	MountStateUnmounting:        "unmounting",
	MountStateMountFailed:       "mount-failed",
}

func (s MountState) String() string {
	if name, ok := mountStateNames[s]; ok {
		return name
	}
	return "invalid"
}

func (s MountState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the state is a resting state rather than a
// transition in progress.
func (s MountState) Terminal() bool {
	switch s {
	case MountStateUnmounted, MountStateReady, MountStateMountFailed:
		return true
	}
	return false
}
