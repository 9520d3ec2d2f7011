package tcam

type register struct {
	Address  uint16
	ReadOnly bool
}

// Registers published by the sensor's bridge FPGA once it has booted.
var RES_WIDTH = register{0x0200, true}
var RES_HEIGHT = register{0x0201, true}

// DefaultAddress is the sensor's fixed 7-bit two-wire bus address.
const DefaultAddress uint16 = 0x54

// Media bus pixel codes.
const (
	MbusFmtYUYV8_1X16 uint32 = 0x2011
	MbusFmtUYVY8_1X16 uint32 = 0x200f
)

type Colorspace uint32

const (
	ColorspaceDefault   Colorspace = 0
	ColorspaceSMPTE170M Colorspace = 1
	ColorspaceSMPTE240M Colorspace = 2
	ColorspaceRec709    Colorspace = 3
	ColorspaceJPEG      Colorspace = 7
	ColorspaceSRGB      Colorspace = 8
	ColorspaceOpRGB     Colorspace = 9
	ColorspaceBT2020    Colorspace = 10
	ColorspaceRaw       Colorspace = 11
	ColorspaceDCIP3     Colorspace = 12
)

type YCbCrEncoding uint32

const (
	YCbCrEncDefault   YCbCrEncoding = 0
	YCbCrEnc601       YCbCrEncoding = 1
	YCbCrEnc709       YCbCrEncoding = 2
	YCbCrEncBT2020    YCbCrEncoding = 6
	YCbCrEncSMPTE240M YCbCrEncoding = 8
)

type Quantization uint32

const (
	QuantizationDefault   Quantization = 0
	QuantizationFullRange Quantization = 1
	QuantizationLimRange  Quantization = 2
)

type XferFunc uint32

const (
	XferFuncDefault   XferFunc = 0
	XferFunc709       XferFunc = 1
	XferFuncSRGB      XferFunc = 2
	XferFuncOpRGB     XferFunc = 3
	XferFuncSMPTE240M XferFunc = 4
	XferFuncNone      XferFunc = 5
	XferFuncDCIP3     XferFunc = 6
)

type Field uint32

const (
	FieldAny  Field = 0
	FieldNone Field = 1
)

type pixelFormat struct {
	Code       uint32
	Colorspace Colorspace
}

// The sensor bridge only emits YUYV-packed raw thermal samples.
var pixelFormats = []pixelFormat{
	{MbusFmtYUYV8_1X16, ColorspaceRaw},
}

func defaultYCbCrEnc(cs Colorspace) YCbCrEncoding {
	switch cs {
	case ColorspaceRec709, ColorspaceDCIP3:
		return YCbCrEnc709
	case ColorspaceBT2020:
		return YCbCrEncBT2020
	case ColorspaceSMPTE240M:
		return YCbCrEncSMPTE240M
	default:
		return YCbCrEnc601
	}
}

func defaultXferFunc(cs Colorspace) XferFunc {
	switch cs {
	case ColorspaceOpRGB:
		return XferFuncOpRGB
	case ColorspaceSMPTE240M:
		return XferFuncSMPTE240M
	case ColorspaceDCIP3:
		return XferFuncDCIP3
	case ColorspaceRaw:
		return XferFuncNone
	case ColorspaceSRGB, ColorspaceJPEG:
		return XferFuncSRGB
	default:
		return XferFunc709
	}
}
