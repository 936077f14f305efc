package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

/*
logger.SetFlags(logger.ARP | logger.IP)

logger.GetInstance().Info(logger.IP, func() { ... }) // 会输出

logger.GetInstance().Info(logger.ICMP, func() { ... }) // 不会输出
*/

const (
	// ETH 以太网
	ETH = 1 << iota
	ARP
	IP
	ICMP
	// TASK 执行器调度
	TASK
)

var layerNames = map[uint8]string{
	ETH:  "eth",
	ARP:  "arp",
	IP:   "ip",
	ICMP: "icmp",
	TASK: "task",
}

type logger struct {
	mu    sync.RWMutex
	flags uint8
	base  *logrus.Logger
}

var instance *logger
var once sync.Once

// GetInstance 获取日志实例
func GetInstance() *logger {
	once.Do(func() {
		base := logrus.New()
		base.SetOutput(os.Stderr)
		instance = &logger{base: base}
	})
	return instance
}

// SetFlags 设置输出类型
func SetFlags(flags uint8) {
	l := GetInstance()
	l.mu.Lock()
	l.flags = flags
	l.mu.Unlock()
}

// Flags returns the enabled layer mask.
func Flags() uint8 {
	l := GetInstance()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.flags
}

// Info 只有在 mask 对应的层被打开时才执行 f
func (l *logger) Info(mask uint8, f func()) {
	l.mu.RLock()
	on := mask&l.flags != 0
	l.mu.RUnlock()
	if on {
		f()
	}
}

// Std returns the shared logrus logger.
func Std() *logrus.Logger {
	return GetInstance().base
}

// Layer 返回带 layer 字段的日志入口
func Layer(mask uint8) logrus.FieldLogger {
	name, ok := layerNames[uint8(mask)]
	if !ok {
		name = fmt.Sprintf("0x%02x", mask)
	}
	return Std().WithField("layer", name)
}

// ParseLayers 把层名列表转换成掩码，"all" 打开全部
func ParseLayers(names []string) (uint8, error) {
	var flags uint8
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if n == "all" {
			flags = 0xff
			continue
		}
		found := false
		for mask, name := range layerNames {
			if name == n {
				flags |= mask
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown log layer %q", n)
		}
	}
	return flags, nil
}

// FileConfig 日志文件轮转配置
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Config 日志配置
type Config struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Layers []string   `mapstructure:"layers"`
	File   FileConfig `mapstructure:"file"`
}

// Setup 根据配置设置级别、格式、输出以及打开的层
func Setup(cfg Config) error {
	base := Std()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	base.SetLevel(lv)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var out io.Writer = os.Stderr
	if cfg.File.Filename != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSize,    // megabytes
			MaxBackups: cfg.File.MaxBackups, // number of backups
			MaxAge:     cfg.File.MaxAge,     // days
			Compress:   cfg.File.Compress,
		})
	}
	base.SetOutput(out)

	flags, err := ParseLayers(cfg.Layers)
	if err != nil {
		return err
	}
	SetFlags(flags)
	return nil
}

func NOTICE(msg string, v ...string) {
	Std().WithField("kind", "notice").Warn(strings.TrimSpace(msg + " " + strings.Join(v, " ")))
}
