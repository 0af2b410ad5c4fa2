package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/mirror520/pullsub"
	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/persistence"
	"github.com/mirror520/pullsub/pubsub"
	"github.com/mirror520/pullsub/pubsub/inproc"
	"github.com/mirror520/pullsub/pubsub/nats"
	"github.com/mirror520/pullsub/sample"

	transport "github.com/mirror520/pullsub/transport/http"
)

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err.Error())
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	pubsub.AddFactory(conf.NATS, nats.NewPubSub)
	pubsub.AddFactory(conf.InProc, inproc.NewPubSub)

	app := &cli.App{
		Name:  "pullsub",
		Usage: "pull-mode publish/subscribe session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "work directory holding config.yaml",
				EnvVars: []string{"PULLSUB_PATH"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "http port",
				Value:   8080,
				EnvVars: []string{"PULLSUB_HTTP_PORT"},
			},
			&cli.StringFlag{
				Name:  "connect",
				Usage: `peers as a JSON list, e.g. '["nats://localhost:4222"]'`,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "put a value under a key",
				ArgsUsage: "[key] [value]",
				Action:    put,
			},
			{
				Name:      "pull",
				Usage:     "pull samples on demand, one per line read from stdin",
				ArgsUsage: "[key expression]",
				Action:    pull,
			},
			{
				Name:      "sub",
				Usage:     "print samples as they arrive",
				ArgsUsage: "[key expression]",
				Action:    sub,
			},
			{
				Name:   "serve",
				Usage:  "serve the http gateway",
				Action: serve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err.Error())
	}
}

func put(cli *cli.Context) error {
	key := "/demo/example/go-put"
	if cli.Args().Len() > 0 {
		key = cli.Args().Get(0)
	}

	value := "Put from Go!"
	if cli.Args().Len() > 1 {
		value = cli.Args().Get(1)
	}

	sess, _, err := openSession(cli)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Putting Data ('%s': '%s')...\n", key, value)

	_, err = sess.Put(cli.Context, key, []byte(value))
	return err
}

func pull(cli *cli.Context) error {
	expr := "/demo/example/**"
	if cli.Args().Len() > 0 {
		expr = cli.Args().Get(0)
	}

	sess, _, err := openSession(cli)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Creating Subscriber on '%s'...\n", expr)

	info := pullsub.SubInfo{
		Mode:        pullsub.Pull,
		Reliability: pullsub.Reliable,
	}

	sub, err := sess.Subscribe(expr, info, printer(os.Stdout))
	if err != nil {
		return err
	}

	fmt.Println("Press <enter> to pull data...")
	return pullLoop(cli.Context, sess, sub.ID(), os.Stdin)
}

func sub(cli *cli.Context) error {
	expr := "/demo/example/**"
	if cli.Args().Len() > 0 {
		expr = cli.Args().Get(0)
	}

	sess, _, err := openSession(cli)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Creating Subscriber on '%s'...\n", expr)

	info := pullsub.SubInfo{
		Mode:        pullsub.Push,
		Reliability: pullsub.Reliable,
	}

	if _, err := sess.Subscribe(expr, info, printer(os.Stdout)); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cli.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	return nil
}

func serve(cli *cli.Context) error {
	log := zap.L().With(
		zap.String("command", "serve"),
	)

	sess, cfg, err := openSession(cli)
	if err != nil {
		return err
	}
	defer sess.Close()

	var repo sample.Repository
	if cfg.Storage.Enabled {
		repo, err = persistence.NewSampleRepository(cfg.Storage.Persistence)
		if err != nil {
			return err
		}
		defer repo.Close()

		if _, err := pullsub.AttachStorage(sess, cfg.Storage.KeyExpr, repo); err != nil {
			return err
		}

		log.Info("storage attached",
			zap.String("key_expr", cfg.Storage.KeyExpr),
			zap.String("driver", cfg.Storage.Persistence.Driver.String()),
		)
	}

	if !cfg.Transports.HTTP.Enabled {
		return errors.New("http transport disabled")
	}

	endpoints := pullsub.MakeEndpoints(sess, repo)

	srv := &http.Server{
		Addr:    cfg.Transports.HTTP.Internal.Addr(),
		Handler: transport.NewRouter(log, endpoints),
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err.Error())
		}
	}()

	ctx, cancel := signal.NotifyContext(cli.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()

	shutdownCtx, shutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdown()

	return srv.Shutdown(shutdownCtx)
}

func openSession(cli *cli.Context) (pullsub.Session, *conf.Config, error) {
	if err := conf.LoadEnv(cli); err != nil {
		return nil, nil, err
	}

	cfg, err := conf.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	if cli.IsSet("port") {
		cfg.Transports.HTTP.Internal.Port = conf.Port
	}

	if cli.IsSet("connect") {
		value := cli.String("connect")

		peers, err := parseConnect(value)
		if err != nil {
			fmt.Printf("Couldn't insert value `%s` in configuration at `connect`. This is likely because `connect` expects a JSON-serialized list of strings\n", value)
			return nil, nil, err
		}

		cfg.Transports.Link.Enabled = true
		cfg.Transports.Link.Provider = conf.NATS
		cfg.Transports.Link.Connect = peers
	}

	fmt.Println("Opening session...")

	sess := pullsub.Open(cfg.Session)
	sess = pullsub.LoggingMiddleware(zap.L())(sess)

	if cfg.Transports.Link.Enabled {
		link, err := pubsub.NewPubSub(cfg.Transports.Link)
		if err != nil {
			sess.Close()
			fmt.Println("Unable to open session!")
			return nil, nil, err
		}

		sess, err = pullsub.Connect(sess, link, cfg.Transports.Link.DeliverTimeout)
		if err != nil {
			link.Close()
			return nil, nil, err
		}
	}

	return sess, cfg, nil
}
