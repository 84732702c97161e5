package zmachine

// ---------------------------------------------------------------------------
// Host: the engine's view of the outside world
// ---------------------------------------------------------------------------

// Host is everything the engine needs from its surroundings. The engine hands
// out immutable strings and receives owned ones; no references into machine
// memory cross this boundary.
type Host interface {
	// WriteText emits narrative text.
	WriteText(s string)

	// WriteChar emits a single character.
	WriteChar(c rune)

	// WriteObjectName emits an object's short name. Hosts may style it;
	// isLocation marks the player's current room.
	WriteObjectName(name string, isLocation bool)

	// ShowStatus renders the status bar: location on the left, score/turns
	// or a clock on the right.
	ShowStatus(left, right string)

	// ReadLine blocks for a line of input of at most max bytes. ok is false
	// when the host wants the game to end instead.
	ReadLine(max int) (line string, ok bool)

	// SplitWindow and SetWindow exist for stories that probe for windowing.
	// Hosts without windows treat them as no-ops.
	SplitWindow(lines int)
	SetWindow(window int)

	// Save persists an opaque save blob, reporting success.
	Save(data []byte) bool

	// Restore retrieves a previously saved blob, or nil.
	Restore() []byte
}

// NullHost is a Host that swallows output and refuses input. It backs tests
// and non-interactive machine construction.
type NullHost struct{}

func (NullHost) WriteText(string)             {}
func (NullHost) WriteChar(rune)               {}
func (NullHost) WriteObjectName(string, bool) {}
func (NullHost) ShowStatus(string, string)    {}
func (NullHost) ReadLine(int) (string, bool)  { return "", false }
func (NullHost) SplitWindow(int)              {}
func (NullHost) SetWindow(int)                {}
func (NullHost) Save([]byte) bool             { return false }
func (NullHost) Restore() []byte              { return nil }
