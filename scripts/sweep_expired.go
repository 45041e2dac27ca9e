// 手动触发过期报名清理脚本
//
// 清理已集成到主应用的定时任务中（enrollment.sweep_schedule，默认每小时一次）。
// 此脚本用于手动补跑，例如定时任务停用期间或批量导入报名数据之后。
//
// 用法: go run scripts/sweep_expired.go [-config configs] [-dry-run]

package main

import (
	"context"
	"flag"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/logger"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	dryRun := flag.Bool("dry-run", false, "只列出将被标记为过期的报名，不做修改")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	enrollments := repository.NewEnrollmentRepository(db)

	var output interface{}
	if *dryRun {
		now := time.Now()
		lapsed, _, err := enrollments.FindMany(ctx, repository.EnrollmentFilter{
			ExpiresUntil: &now,
		}, repository.ListOptions{Limit: 100, SortBy: repository.SortByExpiresAt, SortOrder: "asc"})
		if err != nil {
			log.Fatalf("查询失败: %v", err)
		}
		// 与清理条件一致：已过期且状态不是 EXPIRED
		pending := make([]model.Enrollment, 0, len(lapsed))
		for _, e := range lapsed {
			if e.Status != model.EnrollmentExpired {
				pending = append(pending, e)
			}
		}
		output = map[string]interface{}{"dryRun": true, "pending": pending}
	} else {
		var locker service.Locker
		if cfg.Redis.Enabled {
			rdb, err := database.InitRedis(&cfg.Redis)
			if err != nil {
				log.Printf("Redis 不可用，不加锁执行: %v", err)
			} else {
				defer rdb.Close()
				locker = database.NewRedisLocker(rdb)
			}
		}

		sweeper := service.NewExpirationSweeper(enrollments, locker, cfg.Enrollment.SweepLockTTL())
		log.Println("手动触发过期报名清理...")
		result, err := sweeper.SweepExpired(ctx)
		if err != nil {
			log.Fatalf("清理失败: %v", err)
		}
		output = result
	}

	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	if err := encoder.Encode(output); err != nil {
		log.Fatalf("输出结果失败: %v", err)
	}
	log.Println("完成！")
}
