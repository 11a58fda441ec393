package dbdriver

// Blank imports register the three database/sql drivers this package
// dispatches to by name (config.Engine.DriverName): "sqlserver",
// "pgx", and "mysql".
import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
)
