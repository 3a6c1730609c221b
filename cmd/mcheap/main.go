// Command mcheap exercises pkg/mcheap from the shell: carve a region and
// report its geometry, run a concurrent alloc/free soak, or allocate one
// block and inspect its status.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcheap/mcheap/pkg/bench"
	"github.com/mcheap/mcheap/pkg/diag"
	"github.com/mcheap/mcheap/pkg/mcheap"
	"github.com/mcheap/mcheap/pkg/region"
	"github.com/mcheap/mcheap/pkg/sizeclass"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "mcheap",
		Short: "mcheap — deterministic O(1) region allocator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $MCHEAP_CONFIG, then ./mcheap.yaml)")

	root.AddCommand(newCreateCmd(), newBenchCmd(), newInspectCmd())
	return root
}

func initConfig(cfgFile string) error {
	viper.SetEnvPrefix("MCHEAP")
	viper.AutomaticEnv()

	if cfgFile == "" {
		cfgFile = os.Getenv("MCHEAP_CONFIG")
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mcheap")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && cfgFile != "" {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func newCreateCmd() *cobra.Command {
	var size uint32

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Carve a region and report its geometry",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := region.Reserve(size)
			if err != nil {
				return err
			}
			defer reg.Release()

			h, err := mcheap.Create(reg.Bytes(), mcheap.WithDiagnostics(diag.NewLogrusReporter()))
			if err != nil {
				return err
			}
			defer h.Destroy()

			fmt.Printf("region size:        %d bytes\n", size)
			fmt.Printf("required alignment: %d bytes\n", region.RequiredAlignment(size))
			fmt.Printf("heap size:          %d bytes\n", h.Size())
			return nil
		},
	}
	cmd.Flags().Uint32Var(&size, "size", 1<<20, "region size in bytes")
	viper.BindPFlag("create.size", cmd.Flags().Lookup("size"))
	return cmd
}

func newBenchCmd() *cobra.Command {
	var size uint32
	var workers int
	var requests int64
	var minSize, maxSize uint32
	var progress time.Duration

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a concurrent alloc/free soak against a fresh heap",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := region.Reserve(size)
			if err != nil {
				return err
			}
			defer reg.Release()

			h, err := mcheap.Create(reg.Bytes(), mcheap.WithLocker(mcheap.NewMutexLocker()))
			if err != nil {
				return err
			}
			defer h.Destroy()

			stats, err := bench.Run(context.Background(), bench.Workload{
				Heap:       h,
				NumWorkers: workers,
				Requests:   requests,
				MinSize:    minSize,
				MaxSize:    maxSize,
				Progress:   progress,
			})
			if err != nil {
				return err
			}

			fmt.Printf("allocs:   %d\n", stats.Allocs.Load())
			fmt.Printf("frees:    %d\n", stats.Frees.Load())
			fmt.Printf("oom:      %d\n", stats.OutOfMem.Load())
			return nil
		},
	}
	cmd.Flags().Uint32Var(&size, "size", 16<<20, "region size in bytes")
	cmd.Flags().IntVar(&workers, "workers", 8, "concurrent workers")
	cmd.Flags().Int64Var(&requests, "requests", 100000, "total alloc/free cycles")
	cmd.Flags().Uint32Var(&minSize, "min-size", 16, "smallest request size")
	cmd.Flags().Uint32Var(&maxSize, "max-size", 65536, "largest request size")
	cmd.Flags().DurationVar(&progress, "progress", 2*time.Second, "progress report interval, 0 to disable")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var size uint32
	var allocSize uint32

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Allocate one block and report its class, status and granted size",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := region.Reserve(size)
			if err != nil {
				return err
			}
			defer reg.Release()

			h, err := mcheap.Create(reg.Bytes())
			if err != nil {
				return err
			}
			defer h.Destroy()

			p, err := h.Alloc(allocSize)
			if err != nil {
				return err
			}

			granted := h.AllocSizeOf(p)
			fmt.Printf("requested: %d bytes\n", allocSize)
			fmt.Printf("granted:   %d bytes (class index %d)\n", granted, sizeclass.ClassToIndex(granted))
			fmt.Printf("status:    %s\n", h.StatusOf(p))

			h.Free(p)
			fmt.Printf("status after free: %s\n", h.StatusOf(p))
			return nil
		},
	}
	cmd.Flags().Uint32Var(&size, "size", 1<<20, "region size in bytes")
	cmd.Flags().Uint32Var(&allocSize, "alloc-size", 100, "bytes to allocate for inspection")
	return cmd
}
