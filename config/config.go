package config

import (
	"github.com/spf13/viper"
)

const (
	DBURL = "database.mysql"

	AlgodAddress       = "algorand.algod_address"
	IndexerAddress     = "algorand.indexer_address"
	ApiKey             = "algorand.api_key"
	TreasuryAddress    = "algorand.treasury_address"
	TreasuryParaphrase = "algorand.treasury_security_paraphrase"
	MinFee             = "algorand.min_fee"
	CheckInTopUp       = "algorand.check_in_top_up"

	VaultAddress   = "vault.address"
	VaultToken     = "vault.token"
	VaultUnSealKey = "vault.unseal_key"
	VaultCipherKey = "vault.cipher_key"
	HolderPath     = "vault.holder_path"
	EventPath      = "vault.event_path"

	Port   = "server.port"
	Secret = "server.secret"

	RedisAddress  = "redis.address"
	RedisPassword = "redis.password"
	RedisDB       = "redis.db"

	DiscoveryCacheTTL = "discovery.cache_ttl"

	PurchaseCooldown = "issuer.purchase_cooldown"
)

func init() {
	viper.AutomaticEnv()
	viper.SetDefault(Port, "9000")
	viper.SetDefault(MinFee, 1000)
	viper.SetDefault(CheckInTopUp, 100000)
	viper.SetDefault(DiscoveryCacheTTL, 30)
	viper.SetDefault(PurchaseCooldown, 30)
}
