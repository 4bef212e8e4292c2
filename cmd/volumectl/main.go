// Command volumectl wires voxelconfig, the concrete codecs and pagers,
// and the stats server together for interactive and scripted use. It
// follows the teacher's cmd/admin subcommand dispatch (os.Args[1] picks
// a flag.NewFlagSet per subcommand) and cmd/server's log.New(os.Stderr,
// ...) logger.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/JamesGbl/polyvox/internal/statsserver"
	"github.com/JamesGbl/polyvox/internal/voxelcodec/zstdcodec"
	"github.com/JamesGbl/polyvox/internal/voxelconfig"
	"github.com/JamesGbl/polyvox/internal/voxelpager/diskpager"
	"github.com/JamesGbl/polyvox/internal/voxelpager/sqlitepager"
	"github.com/JamesGbl/polyvox/internal/volume"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "serve":
			serveCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: volumectl <serve|inspect> [flags]")
	os.Exit(2)
}

// openVolume builds a *volume.Volume[byte] from a voxelconfig.Config the
// way both subcommands need it: codec selection, pager selection, and
// the memory-only special case (a "none" pager always uses the volume's
// own built-in passthrough codec, since there's nothing external to
// compress for).
func openVolume(logger *log.Logger, cfg voxelconfig.Config, schemaPath string) (*volume.Volume[byte], func(), error) {
	region := volume.NewRegion(cfg.ValidRegion.Lower, cfg.ValidRegion.Upper)

	if cfg.Pager.Kind == "" || cfg.Pager.Kind == "none" {
		vol, err := volume.New[byte](region, cfg.BlockSide)
		if err != nil {
			return nil, nil, fmt.Errorf("new volume: %w", err)
		}
		if cfg.TargetMemoryLimitBytes > 0 {
			vol.SetTargetMemoryLimitInBytes(cfg.TargetMemoryLimitBytes)
		}
		return vol, func() {}, nil
	}

	codec, codecCloser, err := openCodec(logger, cfg.Codec)
	if err != nil {
		return nil, nil, err
	}

	var pager volume.Pager
	var pagerCloser func()
	switch cfg.Pager.Kind {
	case "disk":
		dp, err := diskpager.Open(cfg.Pager.Path, diskpager.Shape{
			BlockSide:      cfg.BlockSide,
			VoxelSizeBytes: 1,
			ValidRegion:    region,
			CodecName:      cfg.Codec,
		}, codec, schemaPath)
		if err != nil {
			codecCloser()
			return nil, nil, fmt.Errorf("disk pager: %w", err)
		}
		pager, pagerCloser = dp, func() {}
	case "sqlite":
		sp, err := sqlitepager.Open(cfg.Pager.Path, sqlitepager.Shape{BlockSide: cfg.BlockSide, VoxelSizeBytes: 1}, codec)
		if err != nil {
			codecCloser()
			return nil, nil, fmt.Errorf("sqlite pager: %w", err)
		}
		pager, pagerCloser = sp, func() { _ = sp.Close() }
	default:
		codecCloser()
		return nil, nil, fmt.Errorf("unknown pager kind: %s", cfg.Pager.Kind)
	}

	vol, err := volume.NewWithOptions[byte](region, codec, pager, cfg.BlockSide)
	if err != nil {
		pagerCloser()
		codecCloser()
		return nil, nil, fmt.Errorf("new volume: %w", err)
	}
	if cfg.TargetMemoryLimitBytes > 0 {
		vol.SetTargetMemoryLimitInBytes(cfg.TargetMemoryLimitBytes)
	}
	return vol, func() { pagerCloser(); codecCloser() }, nil
}

func openCodec(logger *log.Logger, name string) (volume.Codec, func(), error) {
	switch name {
	case "", "passthrough":
		if isatty.IsTerminal(os.Stderr.Fd()) {
			logger.Println("warning: codec=passthrough stores voxels uncompressed")
		}
		return volume.DefaultCodec(), func() {}, nil
	case "zstd":
		z, err := zstdcodec.New()
		if err != nil {
			return nil, nil, fmt.Errorf("zstd codec: %w", err)
		}
		return z, func() { _ = z.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown codec: %s", name)
	}
}

// serveCmd opens a volume per config, optionally starts the stats
// server, and runs a line-oriented REPL on stdin until EOF.
func serveCmd(args []string) {
	logger := log.New(os.Stderr, "[volumectl] ", log.LstdFlags)

	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "path to volume config yaml")
	schemaPath := fs.String("manifest-schema", "schemas/manifest.schema.json", "path to the disk pager manifest schema")
	statsAddr := fs.String("stats-addr", "", "address to serve /stats and /stream on (overrides the config's stats.listen_addr; disabled if both are empty)")
	_ = fs.Parse(args)

	if *configPath == "" {
		logger.Fatal("missing -config")
	}
	cfg, err := voxelconfig.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	vol, closeVol, err := openVolume(logger, cfg, *schemaPath)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeVol()
	defer func() {
		if err := vol.FlushAll(); err != nil {
			logger.Fatalf("flush: %v", err)
		}
	}()

	addr := *statsAddr
	if addr == "" {
		addr = cfg.Stats.ListenAddr
	}

	// statsReq is how the stats server's own goroutine asks the REPL
	// loop (the volume's one owning goroutine) for a snapshot, rather
	// than calling vol.Stats() itself: the volume is not safe to touch
	// from two goroutines at once, even for a read.
	statsReq := make(chan chan statsserver.Snapshot)
	if addr != "" {
		srv := statsserver.New(statsserver.Func(func() statsserver.Snapshot {
			reply := make(chan statsserver.Snapshot)
			statsReq <- reply
			return <-reply
		}), logger)
		mux := http.NewServeMux()
		srv.RegisterHandlers(mux)
		stop := make(chan struct{})
		defer close(stop)
		go srv.Run(stop)
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Printf("stats server: %v", err)
			}
		}()
		logger.Printf("stats server listening on %s", addr)
	}

	repl(logger, vol, statsReq)
}

// repl reads "get x y z", "set x y z v", "flush x1 y1 z1 x2 y2 z2",
// "flushall", and "prefetch x1 y1 z1 x2 y2 z2" lines from stdin until
// EOF, printing results to stdout and errors to stderr without exiting.
// It also answers statsReq, the only other thing allowed to touch vol,
// so every access to vol happens on this one goroutine.
func repl(logger *log.Logger, vol *volume.Volume[byte], statsReq <-chan chan statsserver.Snapshot) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					logger.Fatalf("stdin: %v", err)
				}
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if err := replLine(vol, fields); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case reply := <-statsReq:
			reply <- snapshotOf(vol.Stats())
		}
	}
}

func snapshotOf(s volume.Stats) statsserver.Snapshot {
	return statsserver.Snapshot{
		ResidentBlocks:     s.ResidentBlocks,
		CompressedBytes:    s.CompressedBytes,
		UncompressedBlocks: s.UncompressedBlocks,
		Evictions:          s.Evictions,
		CompressionRatio:   s.CompressionRatio,
	}
}

func replLine(vol *volume.Volume[byte], fields []string) error {
	switch fields[0] {
	case "get":
		x, y, z, err := parseInts3(fields[1:])
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		v, err := vol.GetVoxel(x, y, z, volume.Validate)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		fmt.Println(v)
	case "set":
		if len(fields) != 5 {
			return fmt.Errorf("set: expected x y z value, got %d args", len(fields)-1)
		}
		x, y, z, err := parseInts3(fields[1:4])
		if err != nil {
			return fmt.Errorf("set: %w", err)
		}
		n, err := strconv.ParseUint(fields[4], 10, 8)
		if err != nil {
			return fmt.Errorf("set: value %q: %w", fields[4], err)
		}
		if err := vol.SetVoxel(x, y, z, byte(n), volume.Validate); err != nil {
			return fmt.Errorf("set: %w", err)
		}
	case "flush":
		region, err := parseRegion(fields[1:])
		if err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		if err := vol.Flush(region); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	case "flushall":
		if err := vol.FlushAll(); err != nil {
			return fmt.Errorf("flushall: %w", err)
		}
	case "prefetch":
		region, err := parseRegion(fields[1:])
		if err != nil {
			return fmt.Errorf("prefetch: %w", err)
		}
		if err := vol.Prefetch(region); err != nil {
			return fmt.Errorf("prefetch: %w", err)
		}
	default:
		return fmt.Errorf("unknown command: %s", fields[0])
	}
	return nil
}

// inspectCmd prints a disk-paged volume's manifest shape and occupancy
// stats without entering the REPL.
func inspectCmd(args []string) {
	logger := log.New(os.Stderr, "[volumectl] ", log.LstdFlags)

	fs := newFlagSet("inspect")
	configPath := fs.String("config", "", "path to volume config yaml")
	schemaPath := fs.String("manifest-schema", "schemas/manifest.schema.json", "path to the disk pager manifest schema")
	_ = fs.Parse(args)

	if *configPath == "" {
		logger.Fatal("missing -config")
	}
	cfg, err := voxelconfig.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	vol, closeVol, err := openVolume(logger, cfg, *schemaPath)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeVol()

	fmt.Printf("block_side=%d codec=%s pager=%s\n", cfg.BlockSide, cfg.Codec, cfg.Pager.Kind)
	printStats(vol.Stats())
}

func printStats(s volume.Stats) {
	var compressed string
	if isatty.IsTerminal(os.Stdout.Fd()) {
		compressed = humanize.Bytes(uint64(s.CompressedBytes))
	} else {
		compressed = strconv.FormatInt(s.CompressedBytes, 10)
	}
	fmt.Printf("resident_blocks=%d compressed=%s uncompressed_blocks=%d evictions=%d ratio=%.2f\n",
		s.ResidentBlocks, compressed, s.UncompressedBlocks, s.Evictions, s.CompressionRatio)
}

func parseCoord(at string) (x, y, z int32, err error) {
	return parseInts3(strings.Split(at, ","))
}

func parseInts3(fields []string) (x, y, z int32, err error) {
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 coordinates, got %d", len(fields))
	}
	vals := make([]int32, 3)
	for i, f := range fields {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%q: %w", f, err)
		}
		vals[i] = int32(n)
	}
	return vals[0], vals[1], vals[2], nil
}

func parseRegion(fields []string) (volume.Region, error) {
	if len(fields) != 6 {
		return volume.Region{}, fmt.Errorf("expected x1 y1 z1 x2 y2 z2, got %d args", len(fields))
	}
	lx, ly, lz, err := parseInts3(fields[:3])
	if err != nil {
		return volume.Region{}, err
	}
	ux, uy, uz, err := parseInts3(fields[3:])
	if err != nil {
		return volume.Region{}, err
	}
	return volume.NewRegion([3]int32{lx, ly, lz}, [3]int32{ux, uy, uz}), nil
}
