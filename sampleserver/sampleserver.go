// A simple PACS server.
//
// Usage: ./sampleserver -dir <directory> -port 11111
//
// It starts a DICOM server that serves files under <directory>, stores the
// objects it receives through C-STORE, keeps N-CREATE instances (e.g.
// performed procedure steps) in memory, and exposes /metrics, /healthz and
// /associations on the admin address.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/medimesh/go-netdicom"
	"github.com/medimesh/go-netdicom/aeregistry"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"v.io/x/lib/vlog"
)

var (
	configFlag   = flag.String("config", "", "TOML configuration file. Its settings override the flags below.")
	envFlag      = flag.String("env", ".env", "File with NETDICOM_* variables. They override the flags and the config file.")
	portFlag     = flag.String("port", "10000", "TCP port or host:port to listen to")
	adminFlag    = flag.String("admin", ":10080", "host:port of the admin HTTP server. Empty disables it.")
	aeFlag       = flag.String("ae", "bogusae", "AE title of this server")
	remoteAEFlag = flag.String("remote-ae", "GBMAC0261=localhost:11112", `
Comma-separated list of remote AEs, in form aetitle=host:port. For example -remote-ae testae=foo.example.com:12345,testae2=bar.example.com:23456.
In this example, a C-MOVE request to application entity "testae" will resolve to foo.example.com:12345.`)
	dirFlag = flag.String("dir", ".", `
The directory to locate DICOM files to report in C-FIND, C-MOVE, etc.
Files are searched recursively under this directory.`)
	outputFlag = flag.String("output", "", `
The directory to store files received by C-STORE.
If empty, use <dir>/incoming, where <dir> is the value of the -dir flag.`)
)

func configFromFlags() serverConfig {
	return serverConfig{
		AETitle:   *aeFlag,
		Listen:    *portFlag,
		Admin:     *adminFlag,
		Dir:       *dirFlag,
		Output:    *outputFlag,
		RemoteAEs: splitList(*remoteAEFlag),
		RedisKey:  aeregistry.DefaultRedisKey,
		Shutdown:  10 * time.Second,
	}
}

func loadConfig() (serverConfig, error) {
	cfg := configFromFlags()
	if *configFlag != "" {
		if err := loadConfigFile(*configFlag, &cfg); err != nil {
			return cfg, err
		}
	}
	env, err := readEnv(*envFlag)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg, env); err != nil {
		return cfg, err
	}
	cfg.Listen = canonicalizeHostPort(cfg.Listen)
	if cfg.Output == "" {
		cfg.Output = filepath.Join(cfg.Dir, "incoming")
	}
	return cfg, nil
}

// newResolver builds the C-MOVE destination table: the static entries first,
// then the shared Redis table if one is configured.
func newResolver(cfg serverConfig) (aeregistry.Resolver, func(), error) {
	static, err := aeregistry.ParseRemoteAEs(cfg.RemoteAEs)
	if err != nil {
		return nil, nil, err
	}
	for _, title := range static.Titles() {
		addr, _ := static.Resolve(context.Background(), title)
		vlog.VI(1).Infof("Remote AE '%v' -> '%v'", title, addr)
	}
	if cfg.RedisAddr == "" {
		return static, func() {}, nil
	}
	shared, err := aeregistry.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	if err != nil {
		return nil, nil, err
	}
	vlog.Infof("Resolving remote AEs through redis %s key %s", cfg.RedisAddr, cfg.RedisKey)
	return aeregistry.Chain{static, shared}, func() { shared.Close() }, nil
}

func newProviderParams(cfg serverConfig, ix *index, steps *procedureSteps, remoteAEs aeregistry.Resolver) netdicom.ServiceProviderParams {
	return netdicom.ServiceProviderParams{
		AETitle:      cfg.AETitle,
		ListenAddr:   cfg.Listen,
		MaxPDUSize:   cfg.MaxPDUSize,
		ARTIMTimeout: cfg.ARTIMTimeout,
		DIMSETimeout: cfg.DIMSETimeout,
		RemoteAEs:    remoteAEs,
		CEcho: func(e *netdicom.ServiceEvent) dimse.Status {
			vlog.Infof("Received C-ECHO from %s", e.Conn.CallingAETitle)
			return dimse.Success
		},
		CStore: func(e *netdicom.ServiceEvent) dimse.Status {
			return ix.store(cfg.Output, e)
		},
		CFind:   ix.find,
		CGet:    ix.retrieve,
		CMove:   ix.retrieve,
		NCreate: steps.create,
		NSet:    steps.set,
		NGet:    steps.get,
		NDelete: steps.delete,
		OnAssociationEstablished: func(c netdicom.ConnectionState) {
			vlog.Infof("Association from %s (%s) established", c.CallingAETitle, c.RemoteAddr)
		},
		OnAssociationClosed: func(c netdicom.ConnectionState, err error) {
			if err != nil {
				vlog.Infof("Association from %s closed: %v", c.CallingAETitle, err)
			}
		},
	}
}

func main() {
	flag.Parse()
	vlog.ConfigureLibraryLoggerFromFlags()
	cfg, err := loadConfig()
	if err != nil {
		vlog.Fatalf("Failed to load configuration: %v", err)
	}
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		vlog.Fatalf("%s: %v", cfg.Output, err)
	}
	ix := newIndex()
	if err := ix.scan(cfg.Dir); err != nil {
		vlog.Fatalf("%s: Failed to list dicom files: %v", cfg.Dir, err)
	}
	remoteAEs, closeResolver, err := newResolver(cfg)
	if err != nil {
		vlog.Fatalf("Failed to set up remote AEs: %v", err)
	}
	defer closeResolver()

	sp, err := netdicom.NewServiceProvider(newProviderParams(cfg, ix, newProcedureSteps(), remoteAEs))
	if err != nil {
		vlog.Fatal(err)
	}
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		vlog.Fatal(err)
	}
	vlog.Infof("Listening on %s as %s, %d objects", listener.Addr(), cfg.AETitle, ix.len())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := netdicom.RegisterMetrics(reg); err != nil {
		vlog.Fatal(err)
	}
	var admin *http.Server
	if cfg.Admin != "" {
		admin = &http.Server{
			Addr:              cfg.Admin,
			Handler:           newAdminRouter(cfg.AETitle, sp, ix, reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			vlog.Infof("Admin server listening on %s", cfg.Admin)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				vlog.Errorf("admin server: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	serveErr := make(chan error, 1)
	go func() { serveErr <- sp.Serve(listener) }()
	select {
	case err := <-serveErr:
		vlog.Fatalf("Serve: %v", err)
	case <-ctx.Done():
	}

	vlog.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()
	if admin != nil {
		admin.Shutdown(shutdownCtx)
	}
	if err := sp.Shutdown(shutdownCtx); err != nil {
		vlog.Errorf("Shutdown: %v", err)
	}
}
