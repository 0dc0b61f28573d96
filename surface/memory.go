package surface

import (
	"maps"
	"sync"
)

// MemoryDocument is a Document kept entirely in memory. It serves headless
// launches and tests.
type MemoryDocument struct {
	mu        sync.Mutex
	selectors map[string][]*MemorySurface
	body      []*MemorySurface
	active    Focuser

	announcements int
}

// NewMemoryDocument returns an empty document.
func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{selectors: make(map[string][]*MemorySurface)}
}

// Register makes s attached and matched by selector.
func (d *MemoryDocument) Register(selector string, s *MemorySurface) {
	d.mu.Lock()
	d.selectors[selector] = append(d.selectors[selector], s)
	d.mu.Unlock()
	d.Append(s)
}

// Query returns the elements registered for selector.
func (d *MemoryDocument) Query(selector string) []Surface {
	d.mu.Lock()
	defer d.mu.Unlock()

	matches := d.selectors[selector]
	out := make([]Surface, 0, len(matches))
	for _, s := range matches {
		out = append(out, s)
	}
	return out
}

// CreateCanvas returns a new detached canvas.
func (d *MemoryDocument) CreateCanvas() Surface {
	return NewMemorySurface(true, Size{})
}

// Append attaches s to the body.
func (d *MemoryDocument) Append(s Surface) {
	ms, ok := s.(*MemorySurface)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if ms.doc == d {
		return
	}
	ms.mu.Lock()
	ms.doc = d
	ms.mu.Unlock()
	d.body = append(d.body, ms)
}

// Remove detaches s from the body.
func (d *MemoryDocument) Remove(s Surface) {
	ms, ok := s.(*MemorySurface)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, child := range d.body {
		if child == ms {
			d.body = append(d.body[:i], d.body[i+1:]...)
			break
		}
	}
	ms.mu.Lock()
	if ms.doc == d {
		ms.doc = nil
	}
	ms.mu.Unlock()
	if d.active == Focuser(ms) {
		d.active = nil
	}
}

// ActiveElement returns the focused element.
func (d *MemoryDocument) ActiveElement() Focuser {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SetActiveElement moves focus to f without going through a surface.
func (d *MemoryDocument) SetActiveElement(f Focuser) {
	d.mu.Lock()
	d.active = f
	d.mu.Unlock()
}

// AnnounceGamepads counts the announcements.
func (d *MemoryDocument) AnnounceGamepads() {
	d.mu.Lock()
	d.announcements++
	d.mu.Unlock()
}

// Announcements returns how often gamepads were announced.
func (d *MemoryDocument) Announcements() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.announcements
}

// Body returns the attached elements in order.
func (d *MemoryDocument) Body() []*MemorySurface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MemorySurface(nil), d.body...)
}

// MemorySurface is an element of a MemoryDocument.
type MemorySurface struct {
	mu       sync.Mutex
	doc      *MemoryDocument
	canvas   bool
	id       string
	size     Size
	style    map[string]string
	tabIndex *int
}

// NewMemorySurface creates a detached element of the given size.
func NewMemorySurface(canvas bool, size Size) *MemorySurface {
	return &MemorySurface{canvas: canvas, size: size, style: make(map[string]string)}
}

// IsCanvas reports whether the element is a canvas.
func (s *MemorySurface) IsCanvas() bool { return s.canvas }

// ID returns the element id.
func (s *MemorySurface) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetID sets the element id.
func (s *MemorySurface) SetID(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// Connected reports whether the element is in a document body.
func (s *MemorySurface) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil
}

// Size returns the element size.
func (s *MemorySurface) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// SetSize changes the laid out size, as a page resize would.
func (s *MemorySurface) SetSize(size Size) {
	s.mu.Lock()
	s.size = size
	s.mu.Unlock()
}

// ApplyStyle merges style into the inline style.
func (s *MemorySurface) ApplyStyle(style map[string]string) {
	s.mu.Lock()
	maps.Copy(s.style, style)
	s.mu.Unlock()
}

// Style returns a copy of the inline style.
func (s *MemorySurface) Style() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.style)
}

// TabIndex returns the explicit tab index.
func (s *MemorySurface) TabIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabIndex == nil {
		return 0, false
	}
	return *s.tabIndex, true
}

// SetTabIndex sets the tab index.
func (s *MemorySurface) SetTabIndex(i int) {
	s.mu.Lock()
	s.tabIndex = &i
	s.mu.Unlock()
}

// Focus makes the element the active element of its document.
func (s *MemorySurface) Focus() {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc != nil {
		doc.SetActiveElement(s)
	}
}

// Handle returns the surface itself.
func (s *MemorySurface) Handle() any { return s }
