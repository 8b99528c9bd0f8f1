package assistant

import (
	"bytes"
	"encoding/binary"
	"mime"
	"strconv"
	"strings"
)

const (
	wavMIME          = "audio/wav"
	defaultPCMRate   = 24000
	pcmBitsPerSample = 16
)

// Audio is a playable clip.
type Audio struct {
	Data     []byte
	MIMEType string
}

// toWAV returns data unchanged when it already is a container format and
// otherwise wraps raw mono 16-bit little-endian PCM in a RIFF header. The
// sample rate is read from mimeType ("audio/L16;codec=pcm;rate=24000").
func toWAV(data []byte, mimeType string) Audio {
	mt, params, err := mime.ParseMediaType(mimeType)
	if err == nil && !strings.EqualFold(mt, "audio/l16") && !strings.EqualFold(mt, "audio/pcm") {
		return Audio{Data: data, MIMEType: mt}
	}
	rate := defaultPCMRate
	if r, err := strconv.Atoi(params["rate"]); err == nil && r > 0 {
		rate = r
	}

	const channels = 1
	blockAlign := channels * pcmBitsPerSample / 8
	var buf bytes.Buffer
	buf.Grow(44 + len(data))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return Audio{Data: buf.Bytes(), MIMEType: wavMIME}
}
