// Package discovery keeps the monitor's tracked set aligned with an etcd
// registry.
//
// Monitored processes register themselves under a shared key prefix with a
// lease; the lease keepalive keeps the key present while the process runs
// and drops it shortly after a crash. Monitor replicas run a Sync that
// seeds from the prefix and then follows PUT/DELETE events, calling Track
// and Forget on the monitor.
//
// Discovery answers "which processes should be watched"; heartbeats answer
// "are they alive". A process can be registered and Dead at once - that is
// exactly the condition the monitor exists to surface.
//
// Process side:
//
//	cli, _ := discovery.NewClient([]string{"localhost:2379"})
//	reg, _ := discovery.Register(ctx, cli, "/procmon/processes", "payments-1", hostname, 10, logger)
//	defer reg.Stop(context.Background())
//
// Monitor side:
//
//	sync := discovery.NewSync(cli, "/procmon/processes", monitor, logger)
//	_ = sync.Start(ctx)
//	defer sync.Stop()
package discovery
