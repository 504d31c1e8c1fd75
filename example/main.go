package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	introspection "github.com/st-keller/introspection-agent"
	"github.com/st-keller/introspection-agent/owner"
	"github.com/st-keller/introspection-agent/telemetry"
	"github.com/st-keller/introspection-agent/toolkit"
	"github.com/st-keller/introspection-agent/toolkit/sim"
)

func main() {
	log.Println("🚀 Starting example host with the Vasco agent")

	cfg, err := introspection.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.TelemetryTarget(), cfg.Telemetry)
	if err != nil {
		log.Printf("⚠️  Tracing disabled: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("⚠️  Failed to flush spans: %v", err)
		}
	}()

	loop := owner.New()
	tk := sim.New(loop)

	agent, err := introspection.New(cfg, tk, loop)
	if err != nil {
		log.Fatalf("❌ Failed to create agent: %v", err)
	}

	// The agent waits for the owner loop, so it can start before the host has
	// built any windows.
	if err := agent.Start(ctx); err != nil {
		log.Fatalf("❌ Failed to start agent: %v", err)
	}
	defer func() {
		if err := agent.Stop(); err != nil {
			log.Printf("⚠️  Agent stop: %v", err)
		}
	}()

	primary := tk.NewWindow("A", true)
	tk.NewWindow("B", false)
	scene := tk.NewQuickWindow("Scene", true)
	scene.SetPersistentSceneGraph(true)

	go animate(ctx, loop, tk, primary, scene.Window)

	log.Println("✅ Host running!")
	log.Printf("   🔌 Socket: %s", cfg.SocketPath())
	log.Println("   💡 Try: vasco-ctl send " + cfg.ProcessName + " print_windows")

	// The owner loop runs on the main goroutine, as a GUI host's event loop
	// would. A quit command or a signal ends it.
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("⚠️  Owner loop: %v", err)
	}

	log.Println("👋 Host stopped")
}

// animate drives frames and geometry changes the way a live UI would, so
// track_window_events has something to report.
func animate(ctx context.Context, loop *owner.Loop, tk *sim.Toolkit, windows ...*sim.Window) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-ctx.Done():
			return
		case <-loop.Done():
			return
		case <-ticker.C:
		}
		tick++
		for _, w := range windows {
			tk.SwapFrame(w)
			if tick%4 == 0 {
				offset := tick * 10
				loop.Post(func() {
					w.SetGeometry(toolkit.Rect{X: offset, Y: offset, Width: 640, Height: 480})
				})
				tk.Deliver(w, toolkit.Event{Kind: toolkit.EventMove})
			}
		}
	}
}
