// Package texture recognises the DDS images stored inside Fix and Pack
// containers.
//
// Only the leading DDS header is decoded: enough to name a payload and
// report its dimensions. Pixel data is never touched.
package texture

import (
	"encoding/binary"
	"fmt"
)

// DXGI_FORMAT constants for common texture formats
const (
	DXGI_FORMAT_UNKNOWN             = 0
	DXGI_FORMAT_R8G8B8A8_UNORM      = 28
	DXGI_FORMAT_R8G8B8A8_UNORM_SRGB = 29
	DXGI_FORMAT_BC1_UNORM           = 71
	DXGI_FORMAT_BC1_UNORM_SRGB      = 72
	DXGI_FORMAT_BC2_UNORM           = 74
	DXGI_FORMAT_BC2_UNORM_SRGB      = 75
	DXGI_FORMAT_BC3_UNORM           = 77
	DXGI_FORMAT_BC3_UNORM_SRGB      = 78
	DXGI_FORMAT_BC4_UNORM           = 80
	DXGI_FORMAT_BC4_SNORM           = 81
	DXGI_FORMAT_BC5_UNORM           = 83
	DXGI_FORMAT_BC5_SNORM           = 84
	DXGI_FORMAT_BC6H_UF16           = 95
	DXGI_FORMAT_BC6H_SF16           = 96
	DXGI_FORMAT_BC7_UNORM           = 98
	DXGI_FORMAT_BC7_UNORM_SRGB      = 99
)

// DDS header constants
const (
	DDS_MAGIC       = 0x20534444 // "DDS "
	DDS_HEADER_SIZE = 124

	DX10_FOURCC = 0x30315844 // "DX10"
)

// HeaderSize is the size of the magic plus the DDS_HEADER structure.
const HeaderSize = 4 + DDS_HEADER_SIZE

// DX10HeaderSize is HeaderSize plus the DX10 extension block.
const DX10HeaderSize = HeaderSize + 20

// Header is the subset of a DDS header needed to describe a texture.
type Header struct {
	Width      uint32
	Height     uint32
	MipLevels  uint32
	FourCC     uint32
	DXGIFormat uint32 // Only set when FourCC is DX10
	ArraySize  uint32 // Only set when FourCC is DX10
}

// IsDDS reports whether data starts with the DDS signature.
func IsDDS(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[0:4]) == DDS_MAGIC
}

// UnmarshalBinary decodes the DDS header at the start of data.
func (h *Header) UnmarshalBinary(data []byte) error {
	if !IsDDS(data) {
		return fmt.Errorf("missing DDS signature")
	}
	if len(data) < HeaderSize {
		return fmt.Errorf("header data too short: need %d, got %d", HeaderSize, len(data))
	}
	if size := binary.LittleEndian.Uint32(data[4:8]); size != DDS_HEADER_SIZE {
		return fmt.Errorf("invalid header size: expected %d, got %d", DDS_HEADER_SIZE, size)
	}

	h.Height = binary.LittleEndian.Uint32(data[12:16])
	h.Width = binary.LittleEndian.Uint32(data[16:20])
	h.MipLevels = binary.LittleEndian.Uint32(data[28:32])
	// DDS_PIXELFORMAT starts at 76; dwFourCC is its third field.
	h.FourCC = binary.LittleEndian.Uint32(data[84:88])
	h.DXGIFormat = DXGI_FORMAT_UNKNOWN
	h.ArraySize = 0

	if h.FourCC == DX10_FOURCC {
		if len(data) < DX10HeaderSize {
			return fmt.Errorf("DX10 header too short: need %d, got %d", DX10HeaderSize, len(data))
		}
		h.DXGIFormat = binary.LittleEndian.Uint32(data[HeaderSize : HeaderSize+4])
		h.ArraySize = binary.LittleEndian.Uint32(data[HeaderSize+12 : HeaderSize+16])
	}
	return nil
}

// Format returns a readable name for the texture's pixel format.
func (h *Header) Format() string {
	if h.FourCC == DX10_FOURCC {
		return FormatName(h.DXGIFormat)
	}
	var cc [4]byte
	binary.LittleEndian.PutUint32(cc[:], h.FourCC)
	for _, c := range cc {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("FOURCC(0x%x)", h.FourCC)
		}
	}
	return string(cc[:])
}

// String returns a human-readable representation.
func (h *Header) String() string {
	return fmt.Sprintf("Texture: %dx%d, %d mips, format=%s", h.Width, h.Height, h.MipLevels, h.Format())
}

// FormatName returns a human-readable name for a DXGI_FORMAT value.
func FormatName(format uint32) string {
	switch format {
	case DXGI_FORMAT_BC1_UNORM:
		return "BC1_UNORM"
	case DXGI_FORMAT_BC1_UNORM_SRGB:
		return "BC1_UNORM_SRGB"
	case DXGI_FORMAT_BC2_UNORM:
		return "BC2_UNORM"
	case DXGI_FORMAT_BC2_UNORM_SRGB:
		return "BC2_UNORM_SRGB"
	case DXGI_FORMAT_BC3_UNORM:
		return "BC3_UNORM"
	case DXGI_FORMAT_BC3_UNORM_SRGB:
		return "BC3_UNORM_SRGB"
	case DXGI_FORMAT_BC4_UNORM:
		return "BC4_UNORM"
	case DXGI_FORMAT_BC4_SNORM:
		return "BC4_SNORM"
	case DXGI_FORMAT_BC5_UNORM:
		return "BC5_UNORM"
	case DXGI_FORMAT_BC5_SNORM:
		return "BC5_SNORM"
	case DXGI_FORMAT_BC6H_UF16:
		return "BC6H_UF16"
	case DXGI_FORMAT_BC6H_SF16:
		return "BC6H_SF16"
	case DXGI_FORMAT_BC7_UNORM:
		return "BC7_UNORM"
	case DXGI_FORMAT_BC7_UNORM_SRGB:
		return "BC7_UNORM_SRGB"
	case DXGI_FORMAT_R8G8B8A8_UNORM:
		return "R8G8B8A8_UNORM"
	case DXGI_FORMAT_R8G8B8A8_UNORM_SRGB:
		return "R8G8B8A8_UNORM_SRGB"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", format)
	}
}
