// Package jdk models the supported build toolchain majors and their compatibility
// with Jenkins core versions, and installs missing toolchains under the cache root.
package jdk
