package collector

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/dushixiang/lynx/internal/models"
	"github.com/dushixiang/lynx/internal/store"
)

// probeTimeout 单个指标读取的保守超时
const probeTimeout = 10 * time.Second

// appProcessMarkers 判定应用相关进程的命令行特征（运行时、反向代理、数据库、缓存）
var appProcessMarkers = []string{"php-fpm", "nginx", "mysqld", "redis-server"}

// Collector 系统指标采集器，每次采样都写入存储并返回原始值供阈值判断
type Collector struct {
	store      *store.Store
	logger     *zap.Logger
	mountPoint string
}

// New 创建采集器
func New(logger *zap.Logger, st *store.Store, mountPoint string) *Collector {
	return &Collector{
		store:      st,
		logger:     logger,
		mountPoint: mountPoint,
	}
}

// Snapshot 一个采集周期内五类指标的结果，采集失败的项为 nil
type Snapshot struct {
	CPU     *models.CPUSample
	Memory  *models.MemorySample
	Disk    *models.DiskSample
	Network []models.InterfaceSample
	Process *models.ProcessSample
}

// CollectAll 并行采集全部指标。五个子探测相互独立，
// 单项失败只记录日志并跳过本周期，不影响其余指标。
func (c *Collector) CollectAll(ctx context.Context) *Snapshot {
	snapshot := &Snapshot{}

	var wg conc.WaitGroup
	wg.Go(func() {
		if v, err := c.SampleCPU(ctx); err != nil {
			c.logger.Warn("采集 CPU 指标失败，本周期跳过", zap.Error(err))
		} else {
			snapshot.CPU = v
		}
	})
	wg.Go(func() {
		if v, err := c.SampleMemory(ctx); err != nil {
			c.logger.Warn("采集内存指标失败，本周期跳过", zap.Error(err))
		} else {
			snapshot.Memory = v
		}
	})
	wg.Go(func() {
		if v, err := c.SampleDisk(ctx, c.mountPoint); err != nil {
			c.logger.Warn("采集磁盘指标失败，本周期跳过", zap.Error(err))
		} else {
			snapshot.Disk = v
		}
	})
	wg.Go(func() {
		if v, err := c.SampleNetwork(ctx); err != nil {
			c.logger.Warn("采集网络指标失败，本周期跳过", zap.Error(err))
		} else {
			snapshot.Network = v
		}
	})
	wg.Go(func() {
		if v, err := c.SampleProcesses(ctx); err != nil {
			c.logger.Warn("采集进程指标失败，本周期跳过", zap.Error(err))
		} else {
			snapshot.Process = v
		}
	})
	wg.Wait()

	return snapshot
}

// SampleCPU 采集 CPU 使用率与核心数
func (c *Collector) SampleCPU(ctx context.Context) (*models.CPUSample, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	percents, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return nil, err
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	sample := &models.CPUSample{
		CoreCount: cores,
	}
	if len(percents) > 0 {
		sample.UsagePercent = percents[0]
	}

	c.append(models.CategoryCPU, sample)
	return sample, nil
}

// SampleMemory 采集内存使用情况
func (c *Collector) SampleMemory(ctx context.Context) (*models.MemorySample, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}

	sample := &models.MemorySample{
		UsagePercent: vm.UsedPercent,
		TotalBytes:   vm.Total,
		UsedBytes:    vm.Used,
		FreeBytes:    vm.Available,
	}

	c.append(models.CategoryMemory, sample)
	return sample, nil
}

// SampleDisk 采集指定挂载点的磁盘使用情况
func (c *Collector) SampleDisk(ctx context.Context, mountPoint string) (*models.DiskSample, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	usage, err := disk.UsageWithContext(ctx, mountPoint)
	if err != nil {
		return nil, err
	}

	sample := &models.DiskSample{
		MountPoint:   mountPoint,
		UsagePercent: usage.UsedPercent,
		Total:        humanize.IBytes(usage.Total),
		Used:         humanize.IBytes(usage.Used),
		Available:    humanize.IBytes(usage.Free),
	}

	c.append(models.CategoryDisk, sample)
	return sample, nil
}

// SampleNetwork 采集各网卡的包计数与错误计数
func (c *Collector) SampleNetwork(ctx context.Context) ([]models.InterfaceSample, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	samples := make([]models.InterfaceSample, 0, len(counters))
	for _, counter := range counters {
		samples = append(samples, models.InterfaceSample{
			Name:      counter.Name,
			RxOk:      counter.PacketsRecv,
			RxErr:     counter.Errin,
			RxDropped: counter.Dropin,
			TxOk:      counter.PacketsSent,
			TxErr:     counter.Errout,
			TxDropped: counter.Dropout,
		})
	}

	c.append(models.CategoryNetwork, samples)
	return samples, nil
}

// SampleProcesses 采集进程总数与应用相关进程
func (c *Collector) SampleProcesses(ctx context.Context) (*models.ProcessSample, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	processes, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	sample := &models.ProcessSample{
		TotalCount: len(processes),
	}
	for _, p := range processes {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cmdline, _ := p.CmdlineWithContext(ctx)
		if matchesApp(name, cmdline) {
			sample.AppRelated = append(sample.AppRelated, models.ProcessInfo{
				PID:     p.Pid,
				Name:    name,
				Cmdline: cmdline,
			})
		}
	}

	c.append(models.CategoryProcess, sample)
	return sample, nil
}

// matchesApp 按子串匹配判断进程是否与应用相关
func matchesApp(name, cmdline string) bool {
	for _, marker := range appProcessMarkers {
		if strings.Contains(name, marker) || strings.Contains(cmdline, marker) {
			return true
		}
	}
	return false
}

func (c *Collector) append(category models.MetricCategory, value any) {
	c.store.AppendSample(models.MetricSample{
		Timestamp: time.Now(),
		Category:  category,
		Value:     value,
	})
}
