package cmd

import (
	"fmt"
	"os"

	"github.com/rohmanhakim/docs-harvester/internal/storage"
	"github.com/rohmanhakim/docs-harvester/pkg/hashutil"
	"github.com/spf13/cobra"
)

var verifyOutputDir string

// verifyCmd walks every manifest.json under --output-dir and re-hashes its
// checksummed entries, reporting mismatches without touching the network.
// It carries no crawl-correctness weight of its own -- a clean verify run
// says nothing about whether the crawl that produced the manifest was
// itself correct, only that the files on disk still match what it recorded.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a previous run's output against its manifests",
	Long: `verify walks --output-dir, loads every host's manifest.json, and
re-hashes each checksummed entry to find files that went missing or changed
since the crawl that wrote them. It never fetches anything over the network.`,
	Run: func(cmd *cobra.Command, args []string) {
		if verifyOutputDir == "" {
			verifyOutputDir = "output"
		}
		mismatchCount, err := RunVerify(verifyOutputDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
		if mismatchCount > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOutputDir, "output-dir", "output", "root output directory to verify")
	rootCmd.AddCommand(verifyCmd)
}

// RunVerify re-hashes every manifest entry under outDir's per-host
// directories, printing one line per mismatch. It returns the number of
// mismatches found across every manifest.
func RunVerify(outDir string) (int, error) {
	hosts, err := hostDirsUnder(outDir)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", outDir, err)
	}

	total := 0
	for _, host := range hosts {
		manifest := storage.LoadManifest(storage.ManifestPath(outDir, host))
		mismatches := storage.Verify(manifest, hashutil.HashAlgoSHA256)
		for _, m := range mismatches {
			fmt.Printf("%s: %s (%s) %s\n", host, m.SourceURL, m.Path, m.Reason)
		}
		total += len(mismatches)
	}

	if total == 0 {
		fmt.Printf("verify: no mismatches across %d host(s)\n", len(hosts))
	} else {
		fmt.Printf("verify: %d mismatch(es) across %d host(s)\n", total, len(hosts))
	}
	return total, nil
}

// hostDirsUnder lists the immediate subdirectories of outDir -- the
// per-host directories a crawl creates via storage.SanitizeHost.
func hostDirsUnder(outDir string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, entry := range entries {
		if entry.IsDir() {
			hosts = append(hosts, entry.Name())
		}
	}
	return hosts, nil
}
