package adapter

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// NewMySQLFamily connects to MySQL or Doris. Doris speaks the MySQL wire
// protocol on its frontend port, so both engines share one driver.
func NewMySQLFamily(ctx context.Context, source Source) (Adapter, error) {
	db, err := openPool(ctx, "mysql", mysqlDSN(source))
	if err != nil {
		return nil, err
	}
	engine := EngineMySQL
	if source.Engine == EngineDoris {
		engine = EngineDoris
	}
	return newSQLAdapter(engine, db), nil
}

func mysqlDSN(source Source) string {
	cfg := mysql.NewConfig()
	cfg.User = source.Username
	cfg.Passwd = source.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", source.Host, source.Port)
	cfg.DBName = source.Database
	cfg.ParseTime = true
	for key, value := range source.Params {
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params[key] = value
	}
	return cfg.FormatDSN()
}
