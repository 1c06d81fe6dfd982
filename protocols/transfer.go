package protocols

import "io"

// copyBlocks streams src into dst in blocks of at most blockSize bytes,
// invoking progress after every written block. done starts at offset so a
// resumed transfer reports absolute local progress. Returns the final done
// count and the first error encountered; whatever was written before the
// error stays written.
func copyBlocks(dst io.Writer, src io.Reader, blockSize int, offset, total int64, progress ProgressFunc) (int64, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	buf := make([]byte, blockSize)
	done := offset
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return done, werr
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if rerr == io.EOF {
			return done, nil
		}
		if rerr != nil {
			return done, rerr
		}
	}
}
