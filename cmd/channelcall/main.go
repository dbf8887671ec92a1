// Command channelcall invokes a method on a libgit2dart channel host and
// prints the result.
//
//	channelcall getPlatformVersion
//	channelcall --args '{"path":"/tmp/repo"}' open
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"libgit2dart/channel"
	"libgit2dart/client"
	"libgit2dart/codec"
	"libgit2dart/config"
	"libgit2dart/loadbalance"
	"libgit2dart/middleware"
	"libgit2dart/plugin"
	"libgit2dart/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "channelcall: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "", "path to the YAML config")
		hosts      = pflag.StringSlice("host", nil, "host addresses, overrides the config")
		chanName   = pflag.String("channel", plugin.ChannelName, "method channel name")
		rawArgs    = pflag.String("args", "", "JSON arguments for the call")
		codecName  = pflag.String("codec", "", "json or binary")
		timeout    = pflag.Duration("timeout", 5*time.Second, "overall call timeout")
	)
	pflag.Parse()

	if pflag.NArg() != 1 {
		return errors.New("usage: channelcall [flags] <method>")
	}
	method := pflag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if len(*hosts) > 0 {
		cfg.Registry.Kind = "static"
		cfg.Client.Hosts = *hosts
	}
	if *codecName != "" {
		cfg.Codec = *codecName
	}
	log := cfg.Logger()

	ct, err := codec.ParseCodecType(cfg.Codec)
	if err != nil {
		return err
	}
	bal, err := loadbalance.New(cfg.Client.Balancer)
	if err != nil {
		return err
	}

	var reg registry.Registry
	switch cfg.Registry.Kind {
	case "etcd":
		etcd, err := registry.NewEtcdRegistry(log, cfg.Registry.Endpoints, cfg.Registry.DialTimeout)
		if err != nil {
			return err
		}
		defer etcd.Close()
		reg = etcd
	default:
		reg = registry.StaticFor(*chanName, cfg.Client.Hosts...)
	}

	ch := client.NewMethodChannel(*chanName, reg, bal,
		client.WithLogger(log),
		client.WithCodec(ct),
		client.WithPoolSize(1),
		client.WithMiddleware(middleware.Retry(log, cfg.Client.Retries, cfg.Client.RetryDelay)),
	)
	defer ch.Close()

	var args any
	if *rawArgs != "" {
		if err := json.Unmarshal([]byte(*rawArgs), &args); err != nil {
			return fmt.Errorf("--args: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var reply any
	err = ch.InvokeMethod(ctx, method, args, &reply)
	switch {
	case errors.Is(err, channel.ErrNotImplemented):
		fmt.Printf("%s: not implemented\n", method)
		return nil
	case err != nil:
		return err
	}

	out, err := json.Marshal(reply)
	if err != nil {
		// CBOR can decode map[any]any, which JSON cannot represent.
		fmt.Printf("%v\n", reply)
		return nil
	}
	fmt.Println(string(out))
	return nil
}
