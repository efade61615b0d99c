package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vpntools/protonctl/internal/paths"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the OpenVPN client log",
	Long:  `Display the log written by the managed OpenVPN client.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := paths.VPNLogFile()

		if logsFollow {
			if err := followLog(path, os.Stdout, time.Second, nil); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}

		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "no log at %s: %v\n", path, err)
			os.Exit(1)
		}
		defer f.Close()

		if _, err := io.Copy(os.Stdout, f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

// followLog copies appended log output to w, polling every interval. A new
// connection attempt removes and recreates the log, so the path is
// re-checked each round and the file reopened (or rewound after an in-place
// truncation) rather than tailing the old inode forever. A nil stop channel
// follows until an error occurs.
func followLog(path string, w io.Writer, interval time.Duration, stop <-chan struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("no log at %s: %w", path, err)
	}
	defer func() { f.Close() }()

	for {
		if _, err := io.Copy(w, f); err != nil {
			return err
		}

		select {
		case <-stop:
			return nil
		case <-time.After(interval):
		}

		onDisk, err := os.Stat(path)
		if os.IsNotExist(err) {
			// Removed but not yet recreated; keep watching the path.
			continue
		}
		if err != nil {
			return err
		}

		cur, err := f.Stat()
		if err != nil {
			return err
		}
		offset, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}

		switch {
		case !os.SameFile(cur, onDisk):
			next, openErr := os.Open(path)
			if openErr != nil {
				continue
			}
			f.Close()
			f = next
		case onDisk.Size() < offset:
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
	}
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	rootCmd.AddCommand(logsCmd)
}
