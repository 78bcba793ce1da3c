package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/geo"
)

var tagGPSCmd = &cobra.Command{
	Use:   "tag-gps <image> <latitude> <longitude>",
	Short: "Embed GPS coordinates into a JPEG's EXIF metadata",
	Long: `Write GPS latitude and longitude into the image's EXIF data.
Refuses to overwrite existing GPS data unless --force is given.`,
	Args: cobra.ExactArgs(3),
	RunE: runTagGPS,
}

func init() {
	rootCmd.AddCommand(tagGPSCmd)
	tagGPSCmd.Flags().Bool("force", false, "Overwrite existing GPS data")
}

func runTagGPS(cmd *cobra.Command, args []string) error {
	path := args[0]
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q", args[1])
	}
	lon, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q", args[2])
	}
	force := mustGetBool(cmd, "force")

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	tagged, err := geo.WriteGPS(data, lat, lon, force)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, tagged, 0o640); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("Tagged %s with %.6f, %.6f\n", path, lat, lon)
	return nil
}
