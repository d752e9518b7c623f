package processor

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DataChunk represents a chunk of file data
type DataChunk struct {
	Data []byte
	EOF  bool
}

// fileReader wraps an open source file of an outgoing item
type fileReader struct {
	file     *os.File
	fileInfo os.FileInfo
	filePath string
}

func openReader(filePath string) (*fileReader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%s is a directory", filePath)
	}

	return &fileReader{file: file, fileInfo: stat, filePath: filePath}, nil
}

// stream reads the file in chunkSize pieces until EOF, an error or ctx ends.
// The reader is closed when the goroutine exits.
func (fr *fileReader) stream(ctx context.Context, chunkSize int) (<-chan DataChunk, <-chan error) {
	dataCh := make(chan DataChunk, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(dataCh)
		defer close(errCh)
		defer fr.close()

		buffer := make([]byte, chunkSize)
		for {
			n, err := fr.file.Read(buffer)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buffer[:n])
				select {
				case dataCh <- DataChunk{Data: data}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				select {
				case dataCh <- DataChunk{EOF: true}:
				case <-ctx.Done():
					errCh <- ctx.Err()
				}
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("failed to read file: %w", err)
				return
			}
		}
	}()

	return dataCh, errCh
}

func (fr *fileReader) close() error {
	return fr.file.Close()
}
