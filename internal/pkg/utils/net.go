// internal/pkg/utils/net.go
package utils

import (
	"net"
)

// GetOutboundIP 通过一次 UDP "连接" 获取本机对外网卡地址，不会真正发包
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
