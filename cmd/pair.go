package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scarlettdetekelala/hermes-agent/internal/channels/whatsapp"
)

var pairQROutPath string

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair WhatsApp by scanning a QR code",
	RunE:  runPair,
}

func init() {
	pairCmd.Flags().StringVar(&pairQROutPath, "qr-out", "", "path to write the pairing QR code PNG (defaults under the config root)")
}

func runPair(c *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	qrOut := pairQROutPath
	if qrOut == "" {
		qrOut = filepath.Join(cfg.Root, "whatsapp-pair.png")
	}
	dbPath := filepath.Join(cfg.Root, "whatsapp", "device.db")

	if err := whatsapp.Pair(c.Context(), dbPath, qrOut); err != nil {
		return fmt.Errorf("pairing whatsapp: %w", err)
	}
	fmt.Fprintf(c.OutOrStdout(), "whatsapp paired, device store at %s\n", dbPath)
	return nil
}
