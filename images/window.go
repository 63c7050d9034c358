package images

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Show displays an image in a window and blocks until a key is pressed.
func Show(title string, img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	window := gocv.NewWindow(title)
	defer window.Close()

	window.IMShow(mat)
	window.WaitKey(0)
	return nil
}
