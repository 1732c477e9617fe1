package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/api"
	"github.com/banshee-data/motion.fusion/internal/config"
	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/fsutil"
	"github.com/banshee-data/motion.fusion/internal/fusion"
	"github.com/banshee-data/motion.fusion/internal/ingest"
	"github.com/banshee-data/motion.fusion/internal/serialmux"
	"github.com/banshee-data/motion.fusion/internal/stream"
	"github.com/banshee-data/motion.fusion/internal/timeutil"
	"github.com/banshee-data/motion.fusion/internal/units"
	"github.com/banshee-data/motion.fusion/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	grpcListen  = flag.String("grpc-listen", "", "gRPC state stream address, e.g. :50051; empty disables")
	configPath  = flag.String("config", "", "Fusion config JSON (default "+config.DefaultConfigPath+" when present)")
	dbPath      = flag.String("db", "fusion.db", "SQLite database for recorded runs; empty disables recording")
	sourceKind  = flag.String("source", "serial", "Reading source: serial, replay, pcap or mqtt")
	port        = flag.String("port", "", "Serial port (overrides serial_port in the config)")
	devMode     = flag.Bool("dev", false, "Feed the serial source from -input instead of a real port")
	inputPath   = flag.String("input", "", "JSON lines file for replay or dev mode, capture file for pcap")
	udpPort     = flag.Int("udp-port", 0, "UDP destination port to read from a capture; 0 reads all")
	paced       = flag.Bool("paced", true, "Replay recorded inputs at their original rate")
	broker      = flag.String("broker", "", "MQTT broker URL (overrides mqtt_broker in the config)")
	speedUnits  = flag.String("units", units.MPS, "Default speed units: "+units.GetValidUnitsString())
	autoListen  = flag.Bool("autostart", false, "Start listening (and recording) immediately")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

const usage = `usage: fusiond [flags]
       fusiond export -db fusion.db [-run id] [-out dir] [-quantity name]...

`

// inputOptions selects and configures the reading source.
type inputOptions struct {
	Kind    string
	Port    string
	Dev     bool
	File    string
	UDPPort int
	Paced   bool
	Broker  string
}

// input is an opened source plus the resources main must run or release.
type input struct {
	runner ingest.Runner
	mux    serialmux.SerialMuxInterface // nil unless the source is serial
	close  []io.Closer
}

func (in *input) Close() {
	for i := len(in.close) - 1; i >= 0; i-- {
		if err := in.close[i].Close(); err != nil {
			log.Printf("close input: %v", err)
		}
	}
}

func loadConfig(path string, fsys fsutil.FileSystem) (*config.FusionConfig, error) {
	if path == "" {
		if !fsys.Exists(config.DefaultConfigPath) {
			log.Printf("no config file, using built-in defaults")
			return config.DefaultFusionConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadFusionConfig(path)
}

func validateFlags(opts inputOptions, unit string) error {
	if !units.IsValid(unit) {
		return fmt.Errorf("invalid -units %q, want one of %s", unit, units.GetValidUnitsString())
	}
	switch opts.Kind {
	case "serial":
		if opts.Dev && opts.File == "" {
			return errors.New("-dev needs -input")
		}
	case "replay", "pcap":
		if opts.File == "" {
			return fmt.Errorf("-source %s needs -input", opts.Kind)
		}
	case "mqtt":
	default:
		return fmt.Errorf("unknown -source %q", opts.Kind)
	}
	if opts.UDPPort < 0 || opts.UDPPort > 65535 {
		return fmt.Errorf("invalid -udp-port %d", opts.UDPPort)
	}
	return nil
}

func openInput(opts inputOptions, cfg *config.FusionConfig, fsys fsutil.FileSystem, clock timeutil.Clock) (*input, error) {
	hints := ingest.HintsFromConfig(cfg)
	in := &input{}

	switch opts.Kind {
	case "serial":
		var mux serialmux.SerialMuxInterface
		if opts.Dev {
			f, err := fsys.Open(opts.File)
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			mux, _ = serialmux.NewMockSerialMux(strings.Split(strings.TrimSpace(string(data)), "\n")...)
		} else {
			path := opts.Port
			if path == "" {
				path = cfg.GetSerialPort()
			}
			portOpts := serialmux.PortOptions{
				BaudRate: cfg.GetSerialBaudRate(),
				DataBits: cfg.GetSerialDataBits(),
				StopBits: cfg.GetSerialStopBits(),
				Parity:   cfg.GetSerialParity(),
			}
			port, err := serialmux.NewRealSerialMux(path, portOpts)
			if err != nil {
				return nil, fmt.Errorf("open serial port %s: %w", path, err)
			}
			log.Printf("opened %s at %s", path, portOpts)
			mux = port
		}
		in.mux = mux
		in.close = append(in.close, mux)
		if err := mux.Initialize(); err != nil {
			in.Close()
			return nil, fmt.Errorf("initialize bridge: %w", err)
		}
		src := ingest.NewSerialSource(mux, hints)
		if err := src.Configure(); err != nil {
			in.Close()
			return nil, fmt.Errorf("configure bridge: %w", err)
		}
		in.runner = src

	case "replay":
		f, err := fsys.Open(opts.File)
		if err != nil {
			return nil, err
		}
		in.close = append(in.close, f)
		src := ingest.NewReplaySource(f)
		if opts.Paced {
			src = src.Paced(clock)
		}
		in.runner = src

	case "pcap":
		f, err := fsys.Open(opts.File)
		if err != nil {
			return nil, err
		}
		in.close = append(in.close, f)
		src := ingest.NewPCAPSource(f, opts.UDPPort)
		if opts.Paced {
			src = src.Paced(clock)
		}
		in.runner = src

	case "mqtt":
		addr := opts.Broker
		if addr == "" {
			addr = cfg.GetMQTTBroker()
		}
		if addr == "" {
			return nil, errors.New("mqtt source needs -broker or mqtt_broker")
		}
		host, _ := os.Hostname()
		client := ingest.NewMQTTClient(addr, "fusiond-"+host)
		in.runner = ingest.NewMQTTSource(client, cfg.GetMQTTTopic(), hints)

	default:
		return nil, fmt.Errorf("unknown source %q", opts.Kind)
	}
	return in, nil
}

// Main
func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	if len(os.Args) > 1 && os.Args[1] == "export" {
		if err := runExport(os.Args[2:], os.Stdout); err != nil {
			log.Fatalf("export: %v", err)
		}
		return
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("fusiond", version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	opts := inputOptions{
		Kind:    *sourceKind,
		Port:    *port,
		Dev:     *devMode,
		File:    *inputPath,
		UDPPort: *udpPort,
		Paced:   *paced,
		Broker:  *broker,
	}
	if err := validateFlags(opts, *speedUnits); err != nil {
		log.Fatal(err)
	}
	log.Printf("fusiond %s", version.String())

	fsys := fsutil.OSFileSystem{}
	cfg, err := loadConfig(*configPath, fsys)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clock := timeutil.RealClock{}
	pipeline, err := fusion.New(fusion.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}
	defer pipeline.Close()

	in, err := openInput(opts, cfg, fsys, clock)
	if err != nil {
		log.Fatalf("failed to open %s source: %v", opts.Kind, err)
	}
	defer in.Close()

	var (
		store   api.RunStore
		session api.Recording
	)
	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		s := db.NewSession(db.NewRecorder(database, clock), pipeline, opts.Kind)
		store, session = database, s
	}

	if *autoListen {
		pipeline.StartListening()
		if session != nil {
			if err := session.Start("autostart"); err != nil {
				log.Printf("failed to start recording: %v", err)
			}
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the serial monitor owns IO on the port
	if in.mux != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := in.mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := in.runner.Run(ctx, pipeline); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("%s source stopped: %v", opts.Kind, err)
		}
		log.Printf("%s source routine terminated", opts.Kind)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline stopped: %v", err)
		}
		log.Print("tick routine terminated")
	}()

	if *grpcListen != "" {
		states := stream.NewServer(pipeline)
		if _, err := states.Start(*grpcListen); err != nil {
			log.Fatalf("failed to start gRPC server: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			states.Stop()
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(pipeline, store, session, *speedUnits).ServeMux()
		if in.mux != nil {
			in.mux.AttachAdminRoutes(mux)
		}
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach db admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("serving on %s", *listen)

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	if session != nil {
		if id := session.Stop(); id != uuid.Nil {
			log.Printf("closed run %s", id)
		}
	}
	log.Printf("Graceful shutdown complete")
}
