package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cwex/pkg/account"
	"cwex/pkg/config"
	"cwex/pkg/exchange"
	"cwex/pkg/info"
	"cwex/pkg/ingress"
	"cwex/pkg/ledger"
	"cwex/pkg/model"
	"cwex/pkg/ratecache"
	"cwex/pkg/seedvault"
	"cwex/pkg/txstore"
	"cwex/pkg/wallet"
	"cwex/pkg/xetcd"
	"cwex/pkg/xlog"
)

var logger = xlog.GetLogger()

var (
	fApp     string
	fLogDir  string
	fLogFile string
)

var (
	apps = map[string]bool{"wallet": true, "bm": true}
)

func init() {
	flag.StringVar(&fApp, "app", "", "")
	flag.StringVar(&fLogDir, "logdir", "", "")
	flag.StringVar(&fLogFile, "logfile", "", "")
}

func main() {
	var err error
	flag.Parse()

	if !apps[fApp] {
		validApps := ""
		for k := range apps {
			validApps += k + ", "
		}
		panic("invalid app, only (" + validApps + ") avaliable")
	}

	// Initialize the Shared config
	config.EasyInit()

	// Initialize the logger
	if fLogDir == "" {
		fLogDir = filepath.Join(config.Shared.DataDir, "logs")
	}
	if fLogFile == "" {
		fLogFile = fApp + ".log"
	}
	logPath := filepath.Join(fLogDir, fLogFile)
	xlog.Init(fApp, logPath, nil)
	logger.Info(fApp + " started")
	logger.Infof("xlog in %s", logPath)

	// Handle signals
	go handleSignals()

	// Initialize the etcd instance
	err = xetcd.InitShared([]string{config.Shared.Etcd.Main.Url})
	if err != nil {
		logger.Errorf("xetcd.InitShared failed with err:%s", err)
		panic(err)
	}

	// Initialize the database instances(mysql, redis)
	// fatal if failed
	model.DBInit()

	// Start the app
	switch fApp {
	case "":
		return
	case "wallet":
		err = startWallet()
	case "bm":
		err = PrepareForBenchmark()
	default:
		return
	}

	if err != nil {
		logger.Error(err)
		panic(err)
	}
}

// handleSignals handles linux signals
//
//	Function 1: Change log level via SIGUSR1 signal
//		docker exec <container_id> sh -c 'export XLOG_LVL=TRACE && kill -SIGUSR1 1'
func handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)
	logLevelChan := make(chan string)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGUSR1 {
				// Read log level from environment variable
				level := os.Getenv("XLOG_LVL")
				if level != "" {
					logLevelChan <- level
				}
			}
		case level := <-logLevelChan:
			logger := xlog.GetLogger()
			logger.SetLevel(level)
			logger.Infof("Log level set to %s via signal", level)
		}
	}
}

// startWallet starts the wallet worker: ledger, rate cache, exchange engine
// and the NATS ingress
func startWallet() (err error) {
	ctx := context.Background()

	// ledger first, nothing moves money before it caught up with the journal
	l, err := ledger.New("ledger")
	if err != nil {
		return
	}
	err = l.Run()
	if err != nil {
		return
	}

	// rate cache, warmed from redis so a restart does not wait for the source
	rates := ratecache.New(rateSource(), config.Shared.Rates.Interval(), model.GetRedis())
	err = rates.Warm(ctx)
	if err != nil {
		logger.Warningf("rates warm failed with err:%s", err)
	}
	go rates.StartRefresher(ctx)

	// transactions
	txs := txstore.New(model.GetMySQL())
	err = txs.Load()
	if err != nil {
		return
	}

	engine := exchange.New(rates, l, txs, config.Shared.Rates.Grace())
	go engine.StartSweeper(ctx)

	// seed vault and address deriver back the account service
	vault, err := seedvault.New(config.Shared.AESKey, seedvault.NewGormStore(model.GetMySQL()))
	if err != nil {
		return
	}
	deriver := wallet.NewDeriver(vault, model.GetMySQL())
	accounts := account.New(model.GetMySQL(), vault, l)

	// announce this instance
	err = xetcd.Put(xetcd.KeyWalletInstance(info.InstanceID), info.Version)
	if err != nil {
		logger.Warningf("instance announce failed with err:%s", err)
	}

	// ingress last, requests only flow once everything above is ready
	ing := ingress.New(engine, accounts, deriver)
	engine.Pub = ing

	for i := 0; i < 100; i++ {
		err = ing.EnsureStream()
		if err == nil {
			break
		}
		logger.Errorf("ing.EnsureStream failed with err:%s", err)
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		return
	}

	return ing.Run()
}

// rateSource picks the rate source: the configured url, else the url from
// the etcd registry, else fixed dev prices
func rateSource() ratecache.Source {
	url := config.Shared.Rates.SourceURL
	if url == "" {
		url, _ = xetcd.Get(xetcd.KeyRateSource())
	}
	if url == "" {
		logger.Warning("no rate source configured, using static dev prices")
		return ratecache.NewStaticSource()
	}
	return ratecache.NewHTTPSource(url)
}
