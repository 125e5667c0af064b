package screen

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// X11Finder finds a top-level window through the window manager's client list. An empty
// Title selects the active window.
type X11Finder struct {
	Title string

	mu    sync.Mutex
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

func NewX11Finder(title string) (*X11Finder, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "connecting to X server")
	}
	return &X11Finder{
		Title: title,
		conn:  conn,
		root:  xproto.Setup(conn).DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom),
	}, nil
}

func (f *X11Finder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	return nil
}

func (f *X11Finder) Find(ctx context.Context) (image.Rectangle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		return image.Rectangle{}, errors.Wrap(ErrCapture, "X connection closed")
	}

	win, err := f.target()
	if err != nil {
		return image.Rectangle{}, err
	}

	attrs, err := xproto.GetWindowAttributes(f.conn, win).Reply()
	if err != nil {
		return image.Rectangle{}, errors.Wrapf(ErrWindowNotFound, "window %d attributes: %v", win, err)
	}
	if attrs.MapState != xproto.MapStateViewable {
		return image.Rectangle{}, errors.Wrapf(ErrWindowNotFound, "window %d is not viewable", win)
	}

	geom, err := xproto.GetGeometry(f.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}, errors.Wrapf(ErrWindowNotFound, "window %d geometry: %v", win, err)
	}
	origin, err := xproto.TranslateCoordinates(f.conn, win, f.root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, errors.Wrapf(ErrWindowNotFound, "window %d position: %v", win, err)
	}

	x, y := int(origin.DstX), int(origin.DstY)
	return image.Rect(x, y, x+int(geom.Width), y+int(geom.Height)), nil
}

func (f *X11Finder) target() (xproto.Window, error) {
	if f.Title == "" {
		ids, err := f.windowList("_NET_ACTIVE_WINDOW")
		if err != nil || len(ids) == 0 || ids[0] == 0 {
			return 0, errors.Wrap(ErrWindowNotFound, "no active window")
		}
		return ids[0], nil
	}

	windows, err := f.windowList("_NET_CLIENT_LIST")
	if err != nil || len(windows) == 0 {
		tree, terr := xproto.QueryTree(f.conn, f.root).Reply()
		if terr != nil {
			return 0, errors.Wrapf(ErrCapture, "listing windows: %v", terr)
		}
		windows = tree.Children
	}

	needle := strings.ToLower(f.Title)
	for _, w := range windows {
		if strings.Contains(strings.ToLower(f.windowName(w)), needle) {
			return w, nil
		}
	}
	logger.With(zap.String("title", f.Title), zap.Int("windows", len(windows))).Debug("No window matched title")
	return 0, errors.Wrapf(ErrWindowNotFound, "no window titled %q", f.Title)
}

func (f *X11Finder) atom(name string) (xproto.Atom, error) {
	if a, ok := f.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(f.conn, true, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	f.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (f *X11Finder) windowList(property string) ([]xproto.Window, error) {
	a, err := f.atom(property)
	if err != nil {
		return nil, err
	}
	if a == xproto.AtomNone {
		return nil, errors.Errorf("window manager does not provide %s", property)
	}
	prop, err := xproto.GetProperty(f.conn, false, f.root, a, xproto.GetPropertyTypeAny, 0, 1<<16).Reply()
	if err != nil {
		return nil, err
	}
	if prop.Format != 32 {
		return nil, errors.Errorf("unexpected %s format %d", property, prop.Format)
	}

	windows := make([]xproto.Window, 0, len(prop.Value)/4)
	for i := 0; i+4 <= len(prop.Value); i += 4 {
		windows = append(windows, xproto.Window(xgb.Get32(prop.Value[i:])))
	}
	return windows, nil
}

func (f *X11Finder) windowName(w xproto.Window) string {
	if a, err := f.atom("_NET_WM_NAME"); err == nil && a != xproto.AtomNone {
		if name := f.stringProperty(w, a); name != "" {
			return name
		}
	}
	return f.stringProperty(w, xproto.AtomWmName)
}

func (f *X11Finder) stringProperty(w xproto.Window, a xproto.Atom) string {
	prop, err := xproto.GetProperty(f.conn, false, w, a, xproto.GetPropertyTypeAny, 0, 1<<10).Reply()
	if err != nil || prop.Format != 8 {
		return ""
	}
	return string(prop.Value)
}
