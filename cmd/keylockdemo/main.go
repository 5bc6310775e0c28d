// Command keylockdemo drives a small in-process demonstration of the lock
// manager: a handful of transactions contending for the same keys, with the
// shard count and default timeout configurable from flags or from
// KEYLOCKDEMO_-prefixed environment variables via viper.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ashgate/keylock/lock"
)

func main() {
	pflagTimeout := flag.Duration("timeout", 2*time.Second, "default lock wait timeout")
	pflagShards := flag.Int("shards", 8, "number of lock manager shards")
	pflagVerbose := flag.Bool("verbose", false, "enable debug-level lock logging")
	flag.Parse()

	v := viper.New()
	v.SetEnvPrefix("KEYLOCKDEMO")
	v.AutomaticEnv()
	v.SetDefault("timeout", *pflagTimeout)
	v.SetDefault("shards", *pflagShards)
	v.SetDefault("verbose", *pflagVerbose)

	logger := zap.NewNop()
	if v.GetBool("verbose") {
		z, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
			os.Exit(1)
		}
		logger = z
	}
	defer logger.Sync()

	m, err := lock.NewLockManager[string](
		v.GetDuration("timeout"),
		v.GetInt("shards"),
		lock.WithLogger[string](logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating lock manager: %v\n", err)
		os.Exit(1)
	}

	writer := lock.NewTransactionLocker[string](uuid.NewString())
	reader := lock.NewTransactionLocker[string](uuid.NewString())

	if conflict, err := writer.Lock(m, "account:42", true); err != nil || conflict != nil {
		fmt.Fprintf(os.Stderr, "writer: unexpected conflict=%v err=%v\n", conflict, err)
		os.Exit(1)
	}
	fmt.Printf("writer %s holds an exclusive lock on account:42\n", writer.ID())

	done := make(chan struct{})
	go func() {
		defer close(done)
		conflict, err := reader.Lock(m, "account:42", false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reader: unexpected error: %v\n", err)
			return
		}
		if conflict != nil {
			fmt.Printf("reader %s did not get the lock: %s\n", reader.ID(), conflict.Type)
			return
		}
		fmt.Printf("reader %s acquired the lock after the writer released it\n", reader.ID())
	}()

	time.Sleep(100 * time.Millisecond)
	fmt.Printf("stats before release: %+v\n", m.Stats())

	if err := writer.Commit(m); err != nil {
		fmt.Fprintf(os.Stderr, "committing writer: %v\n", err)
		os.Exit(1)
	}
	<-done

	if err := reader.Commit(m); err != nil {
		fmt.Fprintf(os.Stderr, "committing reader: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("stats after both commits: %+v\n", m.Stats())
}
