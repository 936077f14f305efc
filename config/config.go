// Package config 用 viper 加载 bootnet 的配置：YAML 文件加 BOOTNET_* 环境变量。
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/spf13/viper"

	"github.com/impact-eintr/bootnet/logger"
	"github.com/impact-eintr/bootnet/tcpip"
	"github.com/impact-eintr/bootnet/tcpip/async"
	"github.com/impact-eintr/bootnet/tcpip/stack"
)

const (
	DriverTap      = "tap"
	DriverAFPacket = "afpacket"
)

// Config is the top-level configuration of the bootnet binary.
type Config struct {
	Interface InterfaceConfig `mapstructure:"interface"`
	Address   string          `mapstructure:"address"` // CIDR, e.g. 172.23.71.108/24
	Gateway   string          `mapstructure:"gateway"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Ping      PingConfig      `mapstructure:"ping"`
	ARP       ARPConfig       `mapstructure:"arp"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Log       logger.Config   `mapstructure:"log"`
}

// InterfaceConfig 选择网卡驱动
type InterfaceConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"` // tap | afpacket
	// HostAddress 只对 tap 有效：宿主机一侧的地址，为空时只加一条到子网的路由
	HostAddress string        `mapstructure:"host_address"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type ExecutorConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type QueueConfig struct {
	Capacity   int    `mapstructure:"capacity"`
	FullPolicy string `mapstructure:"full_policy"` // abort | drop | block
}

type PingConfig struct {
	Targets  []string      `mapstructure:"targets"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Payload  []int         `mapstructure:"payload"`
}

type ARPConfig struct {
	Retry   time.Duration `mapstructure:"retry"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Sleepers int           `mapstructure:"sleepers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interface.name", "tap0")
	v.SetDefault("interface.driver", DriverTap)
	v.SetDefault("interface.host_address", "")
	v.SetDefault("interface.poll_timeout", time.Millisecond)
	v.SetDefault("address", "172.23.71.108/24")
	v.SetDefault("gateway", "172.23.71.1")
	v.SetDefault("executor.capacity", 256)
	v.SetDefault("queue.capacity", async.DefaultQueueCapacity)
	v.SetDefault("queue.full_policy", "abort")
	v.SetDefault("ping.targets", []string{"172.23.71.14", "8.8.8.8"})
	v.SetDefault("ping.interval", time.Second)
	v.SetDefault("ping.timeout", time.Second)
	v.SetDefault("ping.payload", []int{1, 2, 3})
	v.SetDefault("arp.retry", 100*time.Millisecond)
	v.SetDefault("arp.timeout", 3*time.Second)
	v.SetDefault("heartbeat.interval", time.Minute)
	v.SetDefault("heartbeat.sleepers", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.layers", []string{})
	v.SetDefault("log.file.filename", "")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age", 28)
	v.SetDefault("log.file.compress", false)
}

// Load 读取配置文件（path 为空时只用默认值和环境变量），再做校验
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOOTNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that viper cannot check by type alone.
func (c *Config) Validate() error {
	switch c.Interface.Driver {
	case DriverTap, DriverAFPacket:
	default:
		return fmt.Errorf("interface.driver: unknown driver %q", c.Interface.Driver)
	}
	if c.Interface.Name == "" {
		return fmt.Errorf("interface.name: must not be empty")
	}

	ip, subnet, err := parseCIDR(c.Address)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	network, broadcast := cidr.AddressRange(subnet)
	if ip.Equal(network) || ip.Equal(broadcast) {
		return fmt.Errorf("address: %s is the network or broadcast address of %s", ip, subnet)
	}

	gw, err := parseIPv4(c.Gateway)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if !subnet.Contains(gw) {
		return fmt.Errorf("gateway: %s is outside %s", gw, subnet)
	}
	if gw.Equal(network) || gw.Equal(broadcast) {
		return fmt.Errorf("gateway: %s is the network or broadcast address of %s", gw, subnet)
	}
	if gw.Equal(ip) {
		return fmt.Errorf("gateway: %s is the local address", gw)
	}

	if c.Interface.HostAddress != "" {
		if _, _, err := parseCIDR(c.Interface.HostAddress); err != nil {
			return fmt.Errorf("interface.host_address: %w", err)
		}
	}

	if c.Executor.Capacity <= 0 {
		return fmt.Errorf("executor.capacity: must be positive, got %d", c.Executor.Capacity)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity: must be positive, got %d", c.Queue.Capacity)
	}
	if _, err := async.ParseFullPolicy(c.Queue.FullPolicy); err != nil {
		return fmt.Errorf("queue.full_policy: %w", err)
	}

	for _, t := range c.Ping.Targets {
		if _, err := parseIPv4(t); err != nil {
			return fmt.Errorf("ping.targets: %w", err)
		}
	}
	if c.Ping.Timeout <= 0 {
		return fmt.Errorf("ping.timeout: must be positive")
	}
	if c.Ping.Interval < 0 {
		return fmt.Errorf("ping.interval: must not be negative")
	}
	if _, err := c.Payload(); err != nil {
		return err
	}
	if c.ARP.Retry <= 0 || c.ARP.Timeout <= 0 {
		return fmt.Errorf("arp: retry and timeout must be positive")
	}
	if c.Heartbeat.Sleepers < 0 {
		return fmt.Errorf("heartbeat.sleepers: must not be negative")
	}
	if c.Heartbeat.Sleepers > 0 && c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval: must be positive")
	}
	return nil
}

// StackOptions converts the network part of the config into stack.Options.
func (c *Config) StackOptions(clock tcpip.Clock) (stack.Options, error) {
	ip, subnet, err := parseCIDR(c.Address)
	if err != nil {
		return stack.Options{}, fmt.Errorf("address: %w", err)
	}
	gw, err := parseIPv4(c.Gateway)
	if err != nil {
		return stack.Options{}, fmt.Errorf("gateway: %w", err)
	}
	policy, err := async.ParseFullPolicy(c.Queue.FullPolicy)
	if err != nil {
		return stack.Options{}, fmt.Errorf("queue.full_policy: %w", err)
	}
	return stack.Options{
		Address:       tcpip.AddressFromSlice(ip),
		Netmask:       tcpip.AddressFromSlice(net.IP(subnet.Mask).To4()),
		Gateway:       tcpip.AddressFromSlice(gw),
		Clock:         clock,
		QueueCapacity: c.Queue.Capacity,
		FullPolicy:    policy,
	}, nil
}

// Targets returns the ping targets as addresses.
func (c *Config) Targets() ([]tcpip.Address, error) {
	return ParseAddresses(c.Ping.Targets)
}

// Payload 把配置里的整数列表转成回显请求的数据
func (c *Config) Payload() ([]byte, error) {
	b := make([]byte, len(c.Ping.Payload))
	for i, x := range c.Ping.Payload {
		if x < 0 || x > 0xff {
			return nil, fmt.Errorf("ping.payload[%d]: %d is not a byte", i, x)
		}
		b[i] = byte(x)
	}
	return b, nil
}

// ParseAddresses parses dotted-decimal IPv4 addresses.
func ParseAddresses(ss []string) ([]tcpip.Address, error) {
	addrs := make([]tcpip.Address, 0, len(ss))
	for _, s := range ss {
		ip, err := parseIPv4(s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, tcpip.AddressFromSlice(ip))
	}
	return addrs, nil
}

func parseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address", s)
	}
	return ip.To4(), nil
}

func parseCIDR(s string) (net.IP, *net.IPNet, error) {
	ip, subnet, err := net.ParseCIDR(strings.TrimSpace(s))
	if err != nil {
		return nil, nil, err
	}
	if ip.To4() == nil {
		return nil, nil, fmt.Errorf("%q is not an IPv4 prefix", s)
	}
	return ip.To4(), subnet, nil
}
