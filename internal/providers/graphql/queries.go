package graphql

const tokenMutation = `mutation krakenTokenAuthentication($apikey: String!) {
  obtainKrakenToken(input: {APIKey: $apikey}) {
    token
  }
}`

const activeTariffQuery = `query accountActiveTariff($accountNumber: String!) {
  account(accountNumber: $accountNumber) {
    electricityAgreements(active: true) {
      meterPoint {
        mpan
      }
      tariff {
        ... on StandardTariff {
          displayName
          unitRate
        }
      }
    }
  }
}`

// Quarterly grouping with last: 1 yields the latest complete quarter, which the
// lookback window must be long enough to contain.
const consumptionAndRateQuery = `query consumptionAndRate($accountNumber: String!, $startAt: DateTime!, $grouping: ConsumptionGroupings!) {
  properties(accountNumber: $accountNumber) {
    electricityMeterPoints {
      mpan
      meters {
        serialNumber
        consumption(last: 1, grouping: $grouping, timezone: "UTC", startAt: $startAt) {
          edges {
            node {
              value
              startAt
              endAt
            }
          }
        }
      }
      agreements {
        tariff {
          ... on StandardTariff {
            displayName
            unitRate
          }
        }
      }
    }
  }
}`
