// Package maven invokes the Maven build tool against plugin working copies.
//
// The Invoker validates the configured Maven installation once before its first
// goal, runs every goal in batch mode against the plugin's pom.xml with the
// selected JDK exported as JAVA_HOME, and drives the OpenRewrite Maven plugin to
// apply modernization recipes.
package maven
