package recovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/models"
)

const (
	oldLogAge    = 7 * 24 * time.Hour // 过期日志
	oldTempAge   = 24 * time.Hour     // 过期临时文件
	oldBackupAge = 7 * 24 * time.Hour // 过期备份归档
)

// backupSuffixes 备份归档的文件名后缀
var backupSuffixes = []string{".tar.gz", ".tgz", ".zip", ".bak"}

// CleanupMemory 内存清理：先触发运行时的内存回收提示，再清空应用缓存目录。
// 两个子步骤相互独立，合并结果记为一条恢复记录。
func (e *Engine) CleanupMemory(ctx context.Context) {
	e.logger.Info("执行内存清理")

	var details []string

	// 子步骤1: 运行时内存回收提示（尽力而为）
	debug.FreeOSMemory()
	details = append(details, "已触发运行时内存回收")
	hintOK := true

	// 子步骤2: 清空应用缓存目录
	cacheOK := false
	if e.cfg.CacheDir == "" {
		details = append(details, "未配置缓存目录，跳过")
	} else if removed, err := e.clearDir(e.cfg.CacheDir); err != nil {
		details = append(details, fmt.Sprintf("清空缓存目录失败: %v", err))
	} else {
		details = append(details, fmt.Sprintf("缓存目录已清空(%d 项)", removed))
		cacheOK = true
	}

	e.store.AddRecovery(models.RecoveryRecord{
		Action:    models.ActionMemoryCleanup,
		Timestamp: time.Now(),
		Success:   hintOK || cacheOK,
		Detail:    strings.Join(details, "; "),
	})
}

// CleanupDisk 磁盘清理：四个相互独立的尽力而为子动作。
// 任一子动作成功即记为成功，部分失败只体现在详情里。
func (e *Engine) CleanupDisk(ctx context.Context) {
	e.logger.Info("执行磁盘清理")

	var details []string
	succeeded := 0

	// 1. 删除 7 天前的日志文件
	if e.cfg.LogDir == "" {
		details = append(details, "未配置日志目录，跳过")
	} else if removed, err := e.removeMatching(e.cfg.LogDir, oldLogAge, func(name string) bool {
		return strings.HasSuffix(name, ".log")
	}); err != nil {
		details = append(details, fmt.Sprintf("清理过期日志失败: %v", err))
	} else {
		details = append(details, fmt.Sprintf("删除过期日志 %d 个", removed))
		succeeded++
	}

	// 2. 删除 1 天前、带应用前缀的临时文件
	if e.cfg.TempDir == "" {
		details = append(details, "未配置临时目录，跳过")
	} else if removed, err := e.removeMatching(e.cfg.TempDir, oldTempAge, func(name string) bool {
		return strings.HasPrefix(name, e.cfg.TempFilePrefix)
	}); err != nil {
		details = append(details, fmt.Sprintf("清理临时文件失败: %v", err))
	} else {
		details = append(details, fmt.Sprintf("删除过期临时文件 %d 个", removed))
		succeeded++
	}

	// 3. 删除 7 天前的备份归档
	if e.cfg.BackupDir == "" {
		details = append(details, "未配置备份目录，跳过")
	} else if removed, err := e.removeMatching(e.cfg.BackupDir, oldBackupAge, isBackupArchive); err != nil {
		details = append(details, fmt.Sprintf("清理备份归档失败: %v", err))
	} else {
		details = append(details, fmt.Sprintf("删除过期备份 %d 个", removed))
		succeeded++
	}

	// 4. 清理包管理器本地缓存
	if _, err := e.runner.Run(ctx, e.cfg.PackageCacheCommand); err != nil {
		details = append(details, fmt.Sprintf("清理包管理器缓存失败: %v", err))
	} else {
		details = append(details, "包管理器缓存已清理")
		succeeded++
	}

	e.store.AddRecovery(models.RecoveryRecord{
		Action:    models.ActionDiskCleanup,
		Timestamp: time.Now(),
		Success:   succeeded > 0,
		Detail:    strings.Join(details, "; "),
	})

	if succeeded == 0 {
		e.logger.Warn("磁盘清理的所有子动作均失败")
	}
}

// isBackupArchive 按后缀判断是否为备份归档
func isBackupArchive(name string) bool {
	for _, suffix := range backupSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// removeMatching 递归删除目录下修改时间早于 maxAge、名称匹配的文件
func (e *Engine) removeMatching(dir string, maxAge time.Duration, match func(name string) bool) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	var toRemove []string
	err := afero.Walk(e.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if match(info.Name()) && info.ModTime().Before(cutoff) {
			toRemove = append(toRemove, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, path := range toRemove {
		if err := e.fs.Remove(path); err != nil {
			e.logger.Warn("删除文件失败", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// clearDir 清空目录下的全部条目，保留目录本身
func (e *Engine) clearDir(dir string) (int, error) {
	entries, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if err := e.fs.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			e.logger.Warn("删除缓存条目失败", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
