package chrome

import (
	"fmt"
	"sort"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"

// Devices are the emulation profiles a session can be started with. Mobile
// presets come from chromedp with their scale flattened to 1 so screenshots
// match the CSS viewport.
var Devices = buildDevices(
	[]device.Info{
		device.IPhone12Pro.Device(),
		device.IPhoneX.Device(),
		device.IPadPro.Device(),
		device.GalaxyS5.Device(),
	},
	[][2]int64{{1280, 800}, {1920, 1080}, {960, 700}},
)

func buildDevices(presets []device.Info, desktops [][2]int64) map[string]device.Info {
	out := make(map[string]device.Info, len(presets)+len(desktops))
	for _, p := range presets {
		p.Scale = 1
		p.Landscape = false
		out[p.Name] = p
	}
	for _, d := range desktops {
		name := fmt.Sprintf("Desktop %dx%d", d[0], d[1])
		out[name] = device.Info{Name: name, UserAgent: desktopUA, Width: d[0], Height: d[1], Scale: 1}
	}
	return out
}

// LookupDevice returns the emulation profile registered under name.
func LookupDevice(name string) (device.Info, error) {
	dev, ok := Devices[name]
	if !ok {
		return device.Info{}, fmt.Errorf("unknown device %q", name)
	}
	return dev, nil
}

// DeviceNames lists the registered profiles in name order.
func DeviceNames() []string {
	names := make([]string, 0, len(Devices))
	for name := range Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func emulate(dev device.Info) chromedp.Action {
	return chromedp.Emulate(dev)
}
