// 手动重新生成失败的课时摘要脚本
//
// 摘要任务在服务进程内异步执行，进程崩溃或AI服务长时间不可用时
// 会留下 failed / generating 状态的课时。此脚本将这些课时重新入队，
// 在本进程内同步跑完后退出。
//
// 用法: go run scripts/requeue_summaries.go

package main

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/pkg/database"
	"ai_tutor_backend/pkg/logger"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	var lessons []model.Lesson
	err = db.Where("summary_status IN ?", []string{
		string(model.SummaryFailed),
		string(model.SummaryGenerating),
	}).Find(&lessons).Error
	if err != nil {
		log.Fatalf("查询课时失败: %v", err)
	}
	if len(lessons) == 0 {
		log.Println("没有需要重新生成摘要的课时")
		return
	}

	lessonRepo := repository.NewLessonRepository(db)
	aiService := service.NewAIService(cfg.AI)
	worker := service.NewSummaryWorker(lessonRepo, aiService, len(lessons))
	worker.Start()

	log.Printf("重新入队 %d 个课时...", len(lessons))
	for _, lesson := range lessons {
		if err := lessonRepo.UpdateSummaryStatus(lesson.ID, model.SummaryGenerating); err != nil {
			log.Printf("课时 %d 状态更新失败: %v", lesson.ID, err)
			continue
		}
		if !worker.Enqueue(lesson.ID) {
			log.Printf("课时 %d 入队失败", lesson.ID)
		}
	}

	// 轮询直到所有入队课时离开 generating 状态
	deadline := time.Now().Add(10 * time.Minute)
	for time.Now().Before(deadline) {
		var remaining int64
		db.Model(&model.Lesson{}).
			Where("summary_status = ?", string(model.SummaryGenerating)).
			Count(&remaining)
		if remaining == 0 {
			break
		}
		time.Sleep(2 * time.Second)
	}

	worker.Stop()
	log.Println("完成！")
}
