package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/bento/internal/printer"
	"github.com/dyluth/bento/internal/replica"
	"github.com/spf13/cobra"
)

var (
	imageOut     string
	imageWidth   int
	imageHeight  int
	imageRotate  float64
	imageOriginal bool
)

var imageCmd = &cobra.Command{
	Use:   "image BENTO_ID TODO",
	Short: "Export the image attached to a todo",
	Long: `Export the image attached to a todo.

The bento history is scanned for the entry that attached the image. By default
a JPEG thumbnail fitting --width x --height is written, rotated clockwise by
--rotate degrees. --original writes the attached bytes unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: runImage,
}

func init() {
	imageCmd.Flags().StringVarP(&imageOut, "out", "O", "", "Output file (required)")
	imageCmd.Flags().IntVar(&imageWidth, "width", 256, "Thumbnail width")
	imageCmd.Flags().IntVar(&imageHeight, "height", 256, "Thumbnail height")
	imageCmd.Flags().Float64Var(&imageRotate, "rotate", 0, "Clockwise rotation in degrees")
	imageCmd.Flags().BoolVar(&imageOriginal, "original", false, "Write the attached image unchanged")
	_ = imageCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(imageCmd)
}

func runImage(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}
	item, _, err := s.item(args[1])
	if err != nil {
		return err
	}
	if !item.HasImage {
		return printer.Error(fmt.Sprintf("'%s' has no image", item.Title), "No image was attached to this todo.", nil)
	}

	var data []byte
	if imageOriginal {
		data, err = s.store.Image(ctx, "", item.UUID)
	} else {
		data, err = s.thumbnail(ctx, item.UUID)
	}
	if err != nil {
		if errors.Is(err, replica.ErrImageNotFound) {
			return printer.Error("image not found", "The history has no entry carrying this image.", nil)
		}
		return fmt.Errorf("failed to export image: %w", err)
	}

	if err := os.WriteFile(imageOut, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", imageOut, err)
	}
	printer.Success("Wrote %s (%d bytes)\n", imageOut, len(data))
	return nil
}

func (s *session) thumbnail(ctx context.Context, todoUUID string) ([]byte, error) {
	img, err := s.store.Thumbnail(ctx, "", todoUUID, imageWidth, imageHeight, imageRotate)
	if err != nil {
		return nil, err
	}
	return s.images.EncodeJPEG(img)
}
