// Package audio holds PCM stream helpers shared by the synthesis pipelines:
// a streaming WAV header builder and fixed-size chunk splitting.
//
// All PCM in this codebase is 32-bit float little-endian; sample rate and
// channel count come from the model record.
package audio

import "encoding/binary"

// HeaderSize is the length in bytes of a streaming WAV header.
const HeaderSize = 44

// bytesPerSample for 32-bit float PCM.
const bytesPerSample = 4

// WAVHeader builds a 44-byte WAV header for a stream of unknown length:
// the RIFF and data chunk sizes are set to 0xFFFFFFFF so players treat the
// stream as unbounded. Format tag 3 marks IEEE float samples.
func WAVHeader(sampleRate, channels int) []byte {
	const audioFormat = 3 // IEEE float
	const bitsPerSample = 32

	byteRate := sampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample

	h := make([]byte, 0, HeaderSize)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, 0xFFFFFFFF)
	h = append(h, "WAVEfmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16)
	h = binary.LittleEndian.AppendUint16(h, audioFormat)
	h = binary.LittleEndian.AppendUint16(h, uint16(channels))
	h = binary.LittleEndian.AppendUint32(h, uint32(sampleRate))
	h = binary.LittleEndian.AppendUint32(h, uint32(byteRate))
	h = binary.LittleEndian.AppendUint16(h, uint16(blockAlign))
	h = binary.LittleEndian.AppendUint16(h, bitsPerSample)
	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, 0xFFFFFFFF)
	return h
}

// BytesPerSecond returns the raw PCM data rate for the given audio constants.
func BytesPerSecond(sampleRate, channels int) int {
	return sampleRate * channels * bytesPerSample
}
