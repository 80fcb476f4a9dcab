package adapter

import (
	"context"
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func NewPostgres(ctx context.Context, source Source) (Adapter, error) {
	db, err := openPool(ctx, "pgx", postgresDSN(source))
	if err != nil {
		return nil, err
	}
	return newSQLAdapter(EnginePostgres, db), nil
}

func postgresDSN(source Source) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(source.Username, source.Password),
		Host:   fmt.Sprintf("%s:%d", source.Host, source.Port),
		Path:   "/" + source.Database,
	}
	query := url.Values{}
	query.Set("sslmode", "disable")
	for key, value := range source.Params {
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()
	return u.String()
}
