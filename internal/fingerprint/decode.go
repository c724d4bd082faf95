package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/ivoronin/dupefind/internal/imgtypes"
)

const (
	// MinResizeDimension is the smallest downsample target dimension (pixels)
	// below which an image is fingerprinted at its native size instead.
	MinResizeDimension = 60
	// DownsampleFactor divides each native dimension to compute the
	// downsample target.
	DownsampleFactor = 10
)

// fingerprintFile attempts to decode path as a raster image, downsample
// it, and hash the resulting pixel buffer. It returns ok=false (never an
// error) when the file is not a regular file, is hidden, fails to decode,
// or fails to resize, all of which are best-effort skips, not failures.
func fingerprintFile(path string) (img imgtypes.RasterImage, ok bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return imgtypes.RasterImage{}, false
	}
	if isHidden(path) {
		return imgtypes.RasterImage{}, false
	}

	decoded, err := imaging.Open(path)
	if err != nil {
		return imgtypes.RasterImage{}, false
	}

	buf, ok := pixelBuffer(imaging.Clone(decoded))
	if !ok {
		return imgtypes.RasterImage{}, false
	}

	sum := sha256.Sum256(buf)
	return imgtypes.RasterImage{
		Hash:    hex.EncodeToString(sum[:]),
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

// pixelBuffer returns the raw pixel bytes to hash: the native buffer if
// either downsample target dimension falls below MinResizeDimension,
// otherwise the nearest-neighbour-resized buffer (speed over quality).
func pixelBuffer(decoded *image.NRGBA) ([]byte, bool) {
	w, h := decoded.Bounds().Dx(), decoded.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, false
	}

	targetW, targetH := w/DownsampleFactor, h/DownsampleFactor
	if targetW < MinResizeDimension || targetH < MinResizeDimension {
		return decoded.Pix, true
	}

	resized := imaging.Resize(decoded, targetW, targetH, imaging.NearestNeighbor)
	if resized == nil || len(resized.Pix) == 0 {
		return nil, false
	}
	return resized.Pix, true
}

func isHidden(path string) bool {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	return len(base) > 0 && base[0] == '.'
}
