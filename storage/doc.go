// Package storage defines the key/value contract used to persist access and refresh tokens,
// together with ready-made adapters.
//
// A Storage reads, writes and removes string values by string key. Every adapter in this
// package is safe for concurrent use, so one instance can back all requests of a client.
//
// # Adapters
//
//   - Memory: map guarded by a RWMutex, the default when no adapter is configured
//   - Disk: one file per key (diskv), survives restarts
//   - Bolt: single bbolt bucket, transactional writes
//
// # Quick Start
//
//	store, err := storage.NewDisk(filepath.Join(os.Getenv("HOME"), ".authclient"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := httpclient.New(store, httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Auth:    auth.Bearer{},
//	})
//
// Custom backends only need the three methods of Storage.
package storage
