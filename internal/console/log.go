// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"bytes"
	"fmt"
	"io"
)

// lineWriter writes console output line by line with carriage returns
// removed.
type lineWriter struct {
	dst     io.Writer
	partial []byte
}

func newLineWriter(dst io.Writer) *lineWriter {
	return &lineWriter{dst: dst}
}

// Write implements [io.Writer]. Incomplete lines are held back until the line
// feed arrives or [lineWriter.Flush] is called.
func (w *lineWriter) Write(data []byte) (int, error) {
	w.partial = append(w.partial, data...)

	for {
		idx := bytes.IndexByte(w.partial, '\n')
		if idx < 0 {
			break
		}

		err := w.writeLn(w.partial[:idx])
		w.partial = w.partial[idx+1:]

		if err != nil {
			return len(data), err
		}
	}

	return len(data), nil
}

// Flush writes any incomplete line.
func (w *lineWriter) Flush() error {
	if len(w.partial) == 0 {
		return nil
	}

	err := w.writeLn(w.partial)
	w.partial = nil

	return err
}

func (w *lineWriter) writeLn(line []byte) error {
	line = bytes.ReplaceAll(line, []byte("\r"), nil)

	_, err := w.dst.Write(append(line, '\n'))
	if err != nil {
		return fmt.Errorf("write console log: %w", err)
	}

	return nil
}
