package fingerprint

// Kind is a fingerprinting technique family.
type Kind string

const (
	KindCanvas    Kind = "canvas"
	KindAudio     Kind = "audio"
	KindDevice    Kind = "device"
	KindNavigator Kind = "navigator"
	KindScreen    Kind = "screen"
)

// apiSignatures maps script API call names to the fingerprinting technique
// they implement. A single call to any of these is suspicious on its own.
var apiSignatures = map[string]Kind{
	// Canvas readback
	"getImageData":   KindCanvas,
	"toDataURL":      KindCanvas,
	"toBlob":         KindCanvas,
	"getClientRects": KindCanvas,

	// Audio analysis
	"getFloatFrequencyData": KindAudio,
	"getByteFrequencyData":  KindAudio,
	"createAnalyser":        KindAudio,
	"createOscillator":      KindAudio,

	// Device enumeration
	"enumerateDevices": KindDevice,
	"getBattery":       KindDevice,
	"getGamepads":      KindDevice,
}

// entropyProperties are navigator/screen reads that are innocuous alone but
// identifying in combination. Several distinct reads from one script inside a
// short window indicate a fingerprinting bundle.
var entropyProperties = map[string]Kind{
	"navigator.userAgent":           KindNavigator,
	"navigator.platform":            KindNavigator,
	"navigator.language":            KindNavigator,
	"navigator.languages":           KindNavigator,
	"navigator.plugins":             KindNavigator,
	"navigator.vendor":              KindNavigator,
	"navigator.vendorSub":           KindNavigator,
	"navigator.hardwareConcurrency": KindNavigator,
	"navigator.deviceMemory":        KindNavigator,
	"navigator.doNotTrack":          KindNavigator,
	"screen.width":                  KindScreen,
	"screen.height":                 KindScreen,
	"screen.colorDepth":             KindScreen,
	"screen.pixelDepth":             KindScreen,
	"window.innerWidth":             KindScreen,
	"window.innerHeight":            KindScreen,
}
