// Command talond is the telescope control daemon. It
// loads its configuration, constructs the daemon service, and serves
// the RPC surface over HTTP until terminated.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/w1xm/talond/internal/config"
	"github.com/w1xm/talond/internal/coverrelay"
	"github.com/w1xm/talond/internal/daemon"
	"github.com/w1xm/talond/internal/rpcserver"
	"github.com/w1xm/talond/internal/security"
	"github.com/w1xm/talond/internal/shm"
)

var (
	configPath  = flag.String("config", "/etc/talond/talond.json", "path to the daemon's JSON configuration file")
	overlayPath = flag.String("config_overlay", "", "optional YAML overlay file layered over the JSON config")
	listenAddr  = flag.String("addr", "127.0.0.1:8540", "address to serve the RPC surface on")
	profileScript = flag.String("profile_script", "/etc/profile.d/talon.sh", "profile script sourced to build the controller's environment")
	controllerBin = flag.String("controller", "telescoped", "talon controller executable to spawn on initialize")
)

func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath, *overlayPath)
	if err != nil {
		log.Fatalf("talond: loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	attach := attachFunc(ctx, cfg)

	var interlock daemon.Interlock
	if cfg.IsFull() {
		interlock = security.Connect(ctx, cfg.Interlock.Address)
	}

	spawner := &daemon.ProcessSpawner{
		Command:       *controllerBin,
		ProfileScript: *profileScript,
	}

	d := daemon.New(cfg, attach, interlock, spawner)
	if cfg.CoverRelayPort != "" {
		cover, err := coverrelay.Connect(ctx, cfg.CoverRelayPort, cfg.CoverRelayBaud, nil)
		if err != nil {
			log.Fatalf("talond: connecting to cover relay: %v", err)
		}
		d.SetCover(cover)
	}
	go d.Run(ctx)

	srv := rpcserver.New(d)
	go srv.Poll(ctx, time.Duration(cfg.QueryDelaySeconds*float64(time.Second)))

	httpServer := &http.Server{
		Addr:         *listenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("talond: listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("talond: %v", err)
	}
}

// attachFunc returns the shared-memory attach function appropriate to
// the configured flavor: a real SysV attach, or an in-process virtual
// segment when cfg.Virtual is set. The virtual segment is driven by its
// own simulation loop, scoped to ctx, so virtual=true is a usable
// standalone deployment mode and not just a test double.
func attachFunc(ctx context.Context, cfg *config.Config) func() (shm.Segment, error) {
	if cfg.Virtual {
		seg := shm.NewVirtualSegment()
		seg.Drive(ctx, time.Second)
		return func() (shm.Segment, error) { return seg, nil }
	}
	return shm.Attach
}
