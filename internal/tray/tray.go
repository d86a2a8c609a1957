// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Checked  bool
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	items   []*MenuItem
	title   string
	tooltip string
	quitCh  chan struct{}
	onExit  func()
}

// New creates a new system tray. onExit runs after the tray loop ends.
func New(title, tooltip string, onExit func()) *Tray {
	return &Tray{
		title:   title,
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
		onExit:  onExit,
	}
}

// AddMenuItem adds a menu item to the tray. Call before Run.
func (t *Tray) AddMenuItem(title string, callback func()) int {
	return t.add(&MenuItem{Title: title, Callback: callback})
}

// AddCheckbox adds a menu item showing a check mark when checked
func (t *Tray) AddCheckbox(title string, checked bool, callback func()) int {
	return t.add(&MenuItem{Title: title, Checked: checked, Callback: callback})
}

// AddLabel adds a non-clickable line, used for status text
func (t *Tray) AddLabel(title string) int {
	return t.add(&MenuItem{Title: title, Disabled: true})
}

func (t *Tray) add(mi *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.ID = len(t.items)
	t.items = append(t.items, mi)
	return mi.ID
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

func (t *Tray) lookup(id int) *MenuItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) {
		return nil
	}
	return t.items[id]
}

// SetItemTitle changes the text of a menu item. Before Run it only updates
// the stored title.
func (t *Tray) SetItemTitle(id int, title string) {
	mi := t.lookup(id)
	if mi == nil {
		return
	}
	t.mu.Lock()
	mi.Title = title
	item := mi.item
	t.mu.Unlock()
	if item != nil {
		item.SetTitle(title)
	}
}

// SetItemEnabled enables or greys out a menu item
func (t *Tray) SetItemEnabled(id int, enabled bool) {
	mi := t.lookup(id)
	if mi == nil {
		return
	}
	t.mu.Lock()
	mi.Disabled = !enabled
	item := mi.item
	t.mu.Unlock()
	if item == nil {
		return
	}
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	mi := t.lookup(id)
	if mi == nil {
		return
	}
	t.mu.Lock()
	mi.Checked = checked
	item := mi.item
	t.mu.Unlock()
	if item == nil {
		return
	}
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() {
		close(t.quitCh)
		if t.onExit != nil {
			t.onExit()
		}
	})
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(getIcon())

	t.mu.Lock()
	items := append([]*MenuItem(nil), t.items...)
	t.mu.Unlock()

	for _, menuItem := range items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}

		t.mu.Lock()
		item := systray.AddMenuItem(menuItem.Title, "")
		if menuItem.Disabled {
			item.Disable()
		}
		if menuItem.Checked {
			item.Check()
		}
		menuItem.item = item
		t.mu.Unlock()

		if menuItem.Callback != nil {
			go func(mi *MenuItem, item *systray.MenuItem) {
				for {
					select {
					case <-item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem, item)
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a 16x16 32-bit ICO: a dark cat face on transparency
func getIcon() []byte {
	const (
		size      = 16
		dibHeader = 40
		pixels    = size * size * 4
		mask      = size * 4 // 1bpp AND mask, rows padded to 32 bits
		imageSize = dibHeader + pixels + mask
		offset    = 6 + 16
	)

	icon := make([]byte, offset+imageSize)
	// ICO header: reserved, type 1 (icon), 1 image
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Directory entry
	copy(icon[6:22], []byte{
		size, size, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		byte(imageSize & 0xFF), byte(imageSize >> 8), 0x00, 0x00,
		offset, 0x00, 0x00, 0x00,
	})
	// BITMAPINFOHEADER; height is doubled for the mask
	copy(icon[22:62], []byte{
		dibHeader, 0x00, 0x00, 0x00,
		size, 0x00, 0x00, 0x00,
		size * 2, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x20, 0x00,
	})

	px := icon[offset+dibHeader:]
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !catPixel(x, size-1-y) { // rows are stored bottom-up
				continue
			}
			i := (y*size + x) * 4
			px[i], px[i+1], px[i+2], px[i+3] = 0x30, 0x30, 0x30, 0xFF // BGRA
		}
	}
	return icon
}

// catPixel reports whether (x, y), top-left origin, is inside the cat outline
func catPixel(x, y int) bool {
	// ears
	if y >= 2 && y < 6 {
		if (x >= 2 && x <= 2+(y-2)) || (x <= 13 && x >= 13-(y-2)) {
			return true
		}
	}
	// head, minus the eyes
	if y >= 6 && y <= 13 && x >= 2 && x <= 13 {
		eye := y == 9 && (x == 5 || x == 10)
		return !eye
	}
	return false
}
