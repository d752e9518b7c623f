// Package processor moves item bytes between files and the data channel:
// chunked reading on the sending side, reassembly on the receiving side.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"trebleshot/internal/logging"
	"trebleshot/pkg/types"
	"trebleshot/pkg/utils"
)

var ErrNoActiveFile = errors.New("no file prepared")

// DataProcessor holds the file of the item currently being sent or received.
// It is used by one transfer handler at a time.
type DataProcessor struct {
	logger        *logging.Logger
	currentReader *fileReader
	currentWriter *fileWriter
}

// NewDataProcessor creates a new data processor
func NewDataProcessor(logger *logging.Logger) *DataProcessor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DataProcessor{logger: logger.Component("processor")}
}

// PrepareFileForSending opens the source file of an outgoing item and returns its size
func (d *DataProcessor) PrepareFileForSending(filePath string) (int64, error) {
	if d.currentReader != nil {
		d.currentReader.close()
		d.currentReader = nil
	}

	reader, err := openReader(filePath)
	if err != nil {
		return 0, err
	}
	d.currentReader = reader

	size := reader.fileInfo.Size()
	d.logger.Debug().Str("file", filePath).Str("size", utils.FormatFileSize(size)).Msg("file prepared for sending")
	return size, nil
}

// StartReadingFile streams the prepared file. Ownership of the file moves to
// the reading goroutine.
func (d *DataProcessor) StartReadingFile(ctx context.Context, chunkSize int) (<-chan DataChunk, <-chan error, error) {
	if d.currentReader == nil {
		return nil, nil, ErrNoActiveFile
	}
	if chunkSize <= 0 {
		return nil, nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	dataCh, errCh := d.currentReader.stream(ctx, chunkSize)
	d.currentReader = nil
	return dataCh, errCh, nil
}

// PrepareFileForReceiving creates the destination file of an incoming item
// below saveDir and returns its stored name relative to saveDir.
func (d *DataProcessor) PrepareFileForReceiving(saveDir string, meta types.ItemMetadata) (string, error) {
	if d.currentWriter != nil {
		d.currentWriter.close()
		d.currentWriter = nil
	}

	writer, err := createWriter(saveDir, meta)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	d.currentWriter = writer

	d.logger.Debug().
		Str("file", writer.destPath).
		Str("size", utils.FormatFileSize(meta.Size)).
		Str("type", meta.MimeType).
		Msg("file prepared for receiving")
	return writer.storedName, nil
}

// WriteData appends data to the prepared file and returns the bytes written so far
func (d *DataProcessor) WriteData(data []byte) (uint64, error) {
	if d.currentWriter == nil {
		return 0, ErrNoActiveFile
	}
	if err := d.currentWriter.write(data); err != nil {
		return d.currentWriter.totalBytesWritten, err
	}
	return d.currentWriter.totalBytesWritten, nil
}

// FinishReceiving closes the prepared file and returns total bytes written
func (d *DataProcessor) FinishReceiving() (uint64, error) {
	if d.currentWriter == nil {
		return 0, ErrNoActiveFile
	}

	totalBytes := d.currentWriter.totalBytesWritten
	destPath := d.currentWriter.destPath
	err := d.currentWriter.close()
	d.currentWriter = nil
	if err != nil {
		return totalBytes, fmt.Errorf("failed to close file: %w", err)
	}

	d.logger.Debug().Str("file", destPath).Uint64("bytes", totalBytes).Msg("file reception completed")
	return totalBytes, nil
}

// CleanupPartialFile closes and removes a partially written file
func (d *DataProcessor) CleanupPartialFile() error {
	if d.currentWriter == nil {
		return nil
	}

	filePath := d.currentWriter.destPath
	err := d.currentWriter.close()
	d.currentWriter = nil

	if removeErr := os.Remove(filePath); removeErr != nil && !os.IsNotExist(removeErr) {
		if err != nil {
			return fmt.Errorf("failed to close file (%v) and remove partial file: %w", err, removeErr)
		}
		return fmt.Errorf("failed to remove partial file: %w", removeErr)
	}
	return err
}

// Close closes both current file reader and writer
func (d *DataProcessor) Close() error {
	var errs []error

	if d.currentReader != nil {
		if err := d.currentReader.close(); err != nil {
			errs = append(errs, err)
		}
		d.currentReader = nil
	}
	if d.currentWriter != nil {
		if err := d.currentWriter.close(); err != nil {
			errs = append(errs, err)
		}
		d.currentWriter = nil
	}

	return errors.Join(errs...)
}
