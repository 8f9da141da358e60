package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// forUpdate 附加行锁，sqlite 不支持行锁时原样返回（其写事务本身串行）。
func forUpdate(db *gorm.DB) *gorm.DB {
	return forUpdateByDialect(db, dbDialectName(db))
}

func forUpdateByDialect(db *gorm.DB, dialect string) *gorm.DB {
	switch dialect {
	case "postgres", "postgresql", "mysql":
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return db
	}
}

var uniqueViolationMarkers = []string{
	"unique constraint",   // sqlite
	"duplicate key value", // postgres
	"duplicate entry",     // mysql
	"sqlstate 23505",
}

// IsUniqueViolation 判断是否为唯一约束冲突，兼容未开启 TranslateError 的连接。
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range uniqueViolationMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
