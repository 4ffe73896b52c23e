package main

import (
	"fmt"
	"os"

	"cwex/pkg/asset"
	"cwex/pkg/model"
	"cwex/pkg/xetcd"
	"cwex/pkg/xnats"

	"github.com/nats-io/nats.go"
)

// PrepareForBenchmark prepare mysql, nats, etcd for benchmark with docker compose
func PrepareForBenchmark() (err error) {

	// 0. Check if prepared

	filePath := "/tmp/cwex_bm_prepared_flag"

	_, err = os.Stat(filePath)
	if err == nil || !os.IsNotExist(err) {
		// already prepared, just wait
		select {}
	}

	// 1. Prepare database

	db := model.GetMySQL()

	type TableName struct {
		TableName string `gorm:"column:TABLE_NAME"`
	}
	var tableNames []TableName
	db.Raw("SELECT TABLE_NAME FROM information_schema.tables WHERE table_schema = DATABASE()").Scan(&tableNames)

	for _, t := range tableNames {
		db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS `%s`", t.TableName))
	}

	for _, a := range asset.All() {
		db.Scopes(model.BalanceSnapTable(a.String())).AutoMigrate(model.BalanceSnap{})
	}
	db.AutoMigrate(model.Lastkv{})
	db.AutoMigrate(model.Balance{})
	db.AutoMigrate(model.User{})
	db.AutoMigrate(model.Seed{})
	db.AutoMigrate(model.Address{})
	db.AutoMigrate(model.ExchangeTx{})

	// 2. Prepare nats

	natsUrl := "nats_wallet:4222"

	logger.Infof("nats connecting %s", natsUrl)
	nc, err := nats.Connect(natsUrl)
	if err != nil {
		logger.Debugf("bm prepare failed with err:%s", err)
		return
	}
	logger.Infof("nats connected %s", natsUrl)

	// Create JetStream Context
	js, err := nc.JetStream()
	if err != nil {
		logger.Debugf("bm prepare failed with err:%s", err)
		return
	}

	// Create a Stream
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     xnats.StreamName,
		Subjects: []string{xnats.StreamName + ".>"},
	})
	if err != nil {
		logger.Debugf("bm prepare failed with err:%s", err)
		return
	}

	// 3. Prepare etcd

	err = xetcd.Put(xetcd.KeyNatsService(), natsUrl)
	if err != nil {
		logger.Debugf("bm prepare failed with err:%s", err)
		return
	}
	err = xetcd.Put(xetcd.KeyRateSource(), "")
	if err != nil {
		logger.Debugf("bm prepare failed with err:%s", err)
		return
	}

	// 4. Create flag file -- set prepared

	_, err = os.Create(filePath)
	if err != nil {
		logger.Debugf("bm prepare failed with err:%s", err)
		return
	}

	logger.Infof("bm prepared")
	select {}
}
