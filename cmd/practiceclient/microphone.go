package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"eq-coach-service/internal/service/practice"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Frames are paced like a live microphone.
const chunkInterval = 100 * time.Millisecond

// wavFormat is the PCM layout of a WAV file.
type wavFormat struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// bytesPerChunk returns the size of one chunkInterval of audio.
func (f wavFormat) bytesPerChunk() int {
	n := f.SampleRate * f.Channels * f.BitsPerSample / 8 * int(chunkInterval/time.Millisecond) / 1000
	if n <= 0 {
		return 1600
	}
	return n
}

var errNotWAV = errors.New("not a PCM WAV file")

func readWAVHeader(r io.Reader) (wavFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return wavFormat{}, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, errNotWAV
	}
	if binary.LittleEndian.Uint16(header[20:22]) != 1 {
		return wavFormat{}, errNotWAV
	}
	return wavFormat{
		Channels:      int(binary.LittleEndian.Uint16(header[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(header[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(header[34:36])),
	}, nil
}

// inspectWAV reads the format of the file at path.
func inspectWAV(path string) (wavFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return wavFormat{}, err
	}
	defer f.Close()
	return readWAVHeader(f)
}

// wavMicrophone plays a WAV file back as live capture. Done is closed once
// the whole file has been streamed; the stream itself stays open until the
// controller releases it.
type wavMicrophone struct {
	path string
	done chan struct{}
	once sync.Once
}

func newWAVMicrophone(path string) *wavMicrophone {
	return &wavMicrophone{path: path, done: make(chan struct{})}
}

func (m *wavMicrophone) Done() <-chan struct{} {
	return m.done
}

func (m *wavMicrophone) Acquire(ctx context.Context) (practice.Stream, error) {
	f, err := os.Open(m.path)
	if err != nil {
		return nil, &practice.CaptureError{Cause: openCause(err), Err: err}
	}
	format, err := readWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, &practice.CaptureError{Cause: practice.CauseOther, Err: err}
	}

	s := newPacedStream()
	go func() {
		defer f.Close()
		buf := make([]byte, format.bytesPerChunk())
		for {
			n, err := f.Read(buf)
			if n > 0 {
				frame := make([]byte, n)
				copy(frame, buf[:n])
				if !s.emit(frame) {
					return
				}
			}
			if err != nil {
				m.once.Do(func() { close(m.done) })
				return
			}
		}
	}()
	return s, nil
}

func openCause(err error) practice.Cause {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return practice.CauseNotFound
	case errors.Is(err, fs.ErrPermission):
		return practice.CauseDenied
	default:
		return practice.CauseOther
	}
}

// silentMicrophone produces silence frames. It drives recognizers that
// script their own speech, such as the mock.
type silentMicrophone struct {
	frameBytes int
}

func (m silentMicrophone) Acquire(ctx context.Context) (practice.Stream, error) {
	s := newPacedStream()
	go func() {
		frame := make([]byte, m.frameBytes)
		for s.emit(frame) {
		}
	}()
	return s, nil
}

// pacedStream delivers frames at chunkInterval until closed.
type pacedStream struct {
	frames chan []byte
	stop   chan struct{}
	once   sync.Once
}

func newPacedStream() *pacedStream {
	return &pacedStream{frames: make(chan []byte), stop: make(chan struct{})}
}

func (s *pacedStream) Frames() <-chan []byte {
	return s.frames
}

// emit sends frame and waits one interval. It reports false once closed.
func (s *pacedStream) emit(frame []byte) bool {
	select {
	case s.frames <- frame:
	case <-s.stop:
		return false
	}
	select {
	case <-time.After(chunkInterval):
		return true
	case <-s.stop:
		return false
	}
}

func (s *pacedStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
