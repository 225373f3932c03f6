// Package capture provides the frame sources the scanner polls.
//
// A Source yields packed 8-bit frames on demand. Camera and video file sources
// run an ffmpeg subprocess that emits raw RGB24 frames on stdout; the stills
// source walks a directory of images. The package also enumerates V4L2
// devices, lists their capture formats, serializes exclusive device access
// through lock files, and watches udev for camera hot-plug events.
package capture
