//go:build windows

package wasapi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/looptap/looptap/pkg/endpoint"
)

const (
	deviceStateActive = 0x1
	stgmRead          = 0
	eConsole          = 0
)

type propertyKey struct {
	fmtid windows.GUID
	pid   uint32
}

var pkeyDeviceFriendlyName = propertyKey{
	fmtid: windows.GUID{Data1: 0xA45C254E, Data2: 0xDF1C, Data3: 0x4EFD, Data4: [8]byte{0x80, 0x20, 0x67, 0xD1, 0x46, 0xA8, 0x50, 0xE0}},
	pid:   14,
}

type immDeviceEnumeratorVtbl struct {
	iUnknownVtbl
	enumAudioEndpoints                     uintptr
	getDefaultAudioEndpoint                uintptr
	getDevice                              uintptr
	registerEndpointNotificationCallback   uintptr
	unregisterEndpointNotificationCallback uintptr
}

type immDeviceEnumerator struct {
	vtbl *immDeviceEnumeratorVtbl
}

type immDeviceCollectionVtbl struct {
	iUnknownVtbl
	getCount uintptr
	item     uintptr
}

type immDeviceCollection struct {
	vtbl *immDeviceCollectionVtbl
}

type immDeviceVtbl struct {
	iUnknownVtbl
	activate          uintptr
	openPropertyStore uintptr
	getId             uintptr
	getState          uintptr
}

type immDevice struct {
	vtbl *immDeviceVtbl
}

type iPropertyStoreVtbl struct {
	iUnknownVtbl
	getCount uintptr
	getAt    uintptr
	getValue uintptr
	setValue uintptr
	commit   uintptr
}

type iPropertyStore struct {
	vtbl *iPropertyStoreVtbl
}

// Enumerator lists audio endpoint devices and opens handles to them.
type Enumerator struct {
	raw *immDeviceEnumerator
}

// NewEnumerator connects to the system device enumerator. The calling
// goroutine must have run [InitThread].
func NewEnumerator() (*Enumerator, error) {
	var raw *immDeviceEnumerator
	r, _, _ := procCoCreateInstance.Call(
		uintptr(unsafe.Pointer(&clsidMMDeviceEnumerator)),
		0,
		clsctxAll,
		uintptr(unsafe.Pointer(&iidIMMDeviceEnumerator)),
		uintptr(unsafe.Pointer(&raw)),
	)
	if err := hr("CoCreateInstance", r); err != nil {
		return nil, fmt.Errorf("wasapi: create device enumerator: %w", err)
	}
	return &Enumerator{raw: raw}, nil
}

// Devices lists the active endpoints of one direction.
func (e *Enumerator) Devices(flow endpoint.Flow) ([]endpoint.DeviceInfo, error) {
	var coll *immDeviceCollection
	r := comCall(e.raw.vtbl.enumAudioEndpoints,
		uintptr(unsafe.Pointer(e.raw)),
		uintptr(flow),
		deviceStateActive,
		uintptr(unsafe.Pointer(&coll)),
	)
	if err := hr("EnumAudioEndpoints", r); err != nil {
		return nil, fmt.Errorf("wasapi: enumerate %s endpoints: %w", flow, err)
	}
	defer comRelease(unsafe.Pointer(coll), &coll.vtbl.iUnknownVtbl)

	var count uint32
	r = comCall(coll.vtbl.getCount, uintptr(unsafe.Pointer(coll)), uintptr(unsafe.Pointer(&count)))
	if err := hr("GetCount", r); err != nil {
		return nil, fmt.Errorf("wasapi: count endpoints: %w", err)
	}

	infos := make([]endpoint.DeviceInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		var raw *immDevice
		r = comCall(coll.vtbl.item, uintptr(unsafe.Pointer(coll)), uintptr(i), uintptr(unsafe.Pointer(&raw)))
		if err := hr("Item", r); err != nil {
			return nil, fmt.Errorf("wasapi: open endpoint %d: %w", i, err)
		}
		dev := &Device{raw: raw}
		info, err := dev.info()
		dev.Close()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Device opens the endpoint with the given platform identifier.
func (e *Enumerator) Device(id string) (*Device, error) {
	idp, err := windows.UTF16PtrFromString(id)
	if err != nil {
		return nil, fmt.Errorf("wasapi: device id: %w", err)
	}
	var raw *immDevice
	r := comCall(e.raw.vtbl.getDevice,
		uintptr(unsafe.Pointer(e.raw)),
		uintptr(unsafe.Pointer(idp)),
		uintptr(unsafe.Pointer(&raw)),
	)
	if err := hr("GetDevice", r); err != nil {
		return nil, fmt.Errorf("wasapi: open device %q: %w", id, err)
	}
	return &Device{raw: raw}, nil
}

// DefaultDevice opens the default endpoint of one direction for the console
// role.
func (e *Enumerator) DefaultDevice(flow endpoint.Flow) (*Device, error) {
	var raw *immDevice
	r := comCall(e.raw.vtbl.getDefaultAudioEndpoint,
		uintptr(unsafe.Pointer(e.raw)),
		uintptr(flow),
		eConsole,
		uintptr(unsafe.Pointer(&raw)),
	)
	if err := hr("GetDefaultAudioEndpoint", r); err != nil {
		return nil, fmt.Errorf("wasapi: open default %s device: %w", flow, err)
	}
	return &Device{raw: raw}, nil
}

// Close releases the enumerator.
func (e *Enumerator) Close() error {
	if e.raw != nil {
		comRelease(unsafe.Pointer(e.raw), &e.raw.vtbl.iUnknownVtbl)
		e.raw = nil
	}
	return nil
}

// Device is a handle to one enumerated endpoint.
type Device struct {
	raw *immDevice
}

// Activate opens an audio client on the device. The client picks up the
// period-negotiation extension when the device offers it.
func (d *Device) Activate() (endpoint.Client, error) {
	var ac *iAudioClient
	r := comCall(d.raw.vtbl.activate,
		uintptr(unsafe.Pointer(d.raw)),
		uintptr(unsafe.Pointer(&iidIAudioClient)),
		clsctxAll,
		0,
		uintptr(unsafe.Pointer(&ac)),
	)
	if err := hr("Activate", r); err != nil {
		return nil, fmt.Errorf("wasapi: activate audio client: %w", err)
	}
	return newClient(ac), nil
}

// Close releases the device handle.
func (d *Device) Close() error {
	if d.raw != nil {
		comRelease(unsafe.Pointer(d.raw), &d.raw.vtbl.iUnknownVtbl)
		d.raw = nil
	}
	return nil
}

// info reads the identifier and friendly name off the device.
func (d *Device) info() (endpoint.DeviceInfo, error) {
	var info endpoint.DeviceInfo

	var idp *uint16
	r := comCall(d.raw.vtbl.getId, uintptr(unsafe.Pointer(d.raw)), uintptr(unsafe.Pointer(&idp)))
	if err := hr("GetId", r); err != nil {
		return info, fmt.Errorf("wasapi: read endpoint id: %w", err)
	}
	info.ID = utf16At(idp)

	var store *iPropertyStore
	r = comCall(d.raw.vtbl.openPropertyStore, uintptr(unsafe.Pointer(d.raw)), stgmRead, uintptr(unsafe.Pointer(&store)))
	if err := hr("OpenPropertyStore", r); err != nil {
		return info, fmt.Errorf("wasapi: open property store: %w", err)
	}
	defer comRelease(unsafe.Pointer(store), &store.vtbl.iUnknownVtbl)

	var pv propVariant
	r = comCall(store.vtbl.getValue,
		uintptr(unsafe.Pointer(store)),
		uintptr(unsafe.Pointer(&pkeyDeviceFriendlyName)),
		uintptr(unsafe.Pointer(&pv)),
	)
	if err := hr("GetValue", r); err != nil {
		return info, fmt.Errorf("wasapi: read endpoint name: %w", err)
	}
	defer pv.clear()
	if pv.vt == vtLPWSTR {
		// The string stays owned by the variant; clear frees it.
		info.Name = windows.UTF16PtrToString(pv.lpwstr())
	}
	return info, nil
}
