package publish

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/godbus/dbus/v5"
)

// Desktop integration names accepted in the config.
const (
	DesktopNone   = ""
	DesktopXSetBG = "xsetbg"
	DesktopGNOME  = "gnome"
	DesktopKDE    = "kde"
	DesktopXFCE   = "xfce"
	DesktopSway   = "sway"
	DesktopAuto   = "auto"
)

// Desktops lists the accepted desktop names.
var Desktops = []string{DesktopNone, DesktopXSetBG, DesktopGNOME, DesktopKDE, DesktopXFCE, DesktopSway, DesktopAuto}

// Setter tells a desktop shell to show an image.
type Setter interface {
	Name() string
	Set(ctx context.Context, path string) error
}

// runner executes a command; detached commands are started and not waited for.
type runner func(ctx context.Context, detach bool, name string, args ...string) error

func execRunner(ctx context.Context, detach bool, name string, args ...string) error {
	if detach {
		_, err := startDetached(name, args...)
		return err
	}
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// startDetached starts name in its own session. The child is reaped in the
// background; done receives its exit status.
func startDetached(name string, args ...string) (done <-chan error, err error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	ch := make(chan error, 1)
	go func() { ch <- cmd.Wait() }()
	return ch, nil
}

// commandSetter runs one or more commands built from the image path.
type commandSetter struct {
	name     string
	detach   bool
	commands func(path string) [][]string
	run      runner
}

func (s *commandSetter) Name() string { return s.name }

func (s *commandSetter) Set(ctx context.Context, path string) error {
	for _, c := range s.commands(path) {
		if err := s.run(ctx, s.detach, c[0], c[1:]...); err != nil {
			return err
		}
	}
	return nil
}

func xsetbgCommands(path string) [][]string {
	return [][]string{{"xsetbg", path}}
}

func gnomeCommands(path string) [][]string {
	uri := "file://" + path
	return [][]string{
		{"gsettings", "set", "org.gnome.desktop.background", "picture-uri", uri},
		{"gsettings", "set", "org.gnome.desktop.background", "picture-uri-dark", uri},
	}
}

func xfceCommands(path string) [][]string {
	return [][]string{{"xfconf-query",
		"--channel", "xfce4-desktop",
		"--property", "/backdrop/screen0/monitor0/workspace0/last-image",
		"--set", path}}
}

func swayCommands(path string) [][]string {
	return [][]string{{"swaymsg", "output", "*", "bg", path, "fill"}}
}

// KDE sets the wallpaper of every Plasma desktop through evaluateScript.
type KDE struct {
	eval func(ctx context.Context, script string) error
}

func (s *KDE) Name() string { return DesktopKDE }

func (s *KDE) Set(ctx context.Context, path string) error {
	return s.eval(ctx, kdeScript(path))
}

func kdeScript(path string) string {
	return fmt.Sprintf(`var allDesktops = desktops();
for (var i = 0; i < allDesktops.length; i++) {
    var d = allDesktops[i];
    d.wallpaperPlugin = "org.kde.image";
    d.currentConfigGroup = Array("Wallpaper", "org.kde.image", "General");
    d.writeConfig("Image", "file://%s");
}`, path)
}

func plasmaEval(ctx context.Context, script string) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("could not connect to session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object("org.kde.plasmashell", "/PlasmaShell")
	if err := obj.CallWithContext(ctx, "org.kde.PlasmaShell.evaluateScript", 0, script).Err; err != nil {
		return fmt.Errorf("plasma evaluateScript: %w", err)
	}
	return nil
}

// NewSetter returns the setter for name, or nil for DesktopNone. "auto" picks
// one from the session environment.
func NewSetter(name string) (Setter, error) {
	return newSetter(name, os.Getenv, execRunner, plasmaEval)
}

func newSetter(name string, getenv func(string) string, run runner, eval func(context.Context, string) error) (Setter, error) {
	if name == DesktopAuto {
		name = Detect(getenv)
		if name == DesktopNone {
			return nil, fmt.Errorf("could not detect desktop from XDG_CURRENT_DESKTOP=%q", getenv("XDG_CURRENT_DESKTOP"))
		}
	}

	switch name {
	case DesktopNone:
		return nil, nil
	case DesktopXSetBG:
		return &commandSetter{name: name, detach: true, commands: xsetbgCommands, run: run}, nil
	case DesktopGNOME:
		return &commandSetter{name: name, commands: gnomeCommands, run: run}, nil
	case DesktopXFCE:
		return &commandSetter{name: name, commands: xfceCommands, run: run}, nil
	case DesktopSway:
		return &commandSetter{name: name, commands: swayCommands, run: run}, nil
	case DesktopKDE:
		return &KDE{eval: eval}, nil
	default:
		return nil, fmt.Errorf("unknown desktop %q", name)
	}
}

// Detect maps the session environment onto a desktop name.
func Detect(getenv func(string) string) string {
	desktop := getenv("XDG_CURRENT_DESKTOP")
	if desktop == "" {
		desktop = getenv("DESKTOP_SESSION")
	}
	desktop = strings.ToLower(desktop)

	switch {
	case strings.Contains(desktop, "gnome"), strings.Contains(desktop, "unity"),
		strings.Contains(desktop, "cinnamon"), strings.Contains(desktop, "mutter"):
		return DesktopGNOME
	case strings.Contains(desktop, "kde"), strings.Contains(desktop, "plasma"):
		return DesktopKDE
	case strings.Contains(desktop, "xfce"):
		return DesktopXFCE
	case strings.Contains(desktop, "sway"), getenv("SWAYSOCK") != "":
		return DesktopSway
	case getenv("WAYLAND_DISPLAY") == "" && getenv("DISPLAY") != "":
		return DesktopXSetBG
	default:
		return DesktopNone
	}
}
